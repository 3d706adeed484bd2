package inventory

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Stock is the stock representation of a product: either FlatStock or
// VariantList. Code switching on a Stock must handle both.
type Stock interface {
	isStock()
}

// FlatStock is the legacy single-counter shape.
type FlatStock struct {
	Price decimal.Decimal
	Stock int
}

func (FlatStock) isStock() {}

// Variant is a purchasable size of a product with its own counter.
type Variant struct {
	Size  string          `json:"size"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

// VariantList is the ordered list of size variants of a product.
type VariantList []Variant

func (VariantList) isStock() {}

// Index returns the position of the variant with the given size, or -1.
func (l VariantList) Index(size string) int {
	for i, v := range l {
		if v.Size == size {
			return i
		}
	}
	return -1
}

type Product struct {
	ID        string
	Name      string
	Type      string
	Images    []string
	SoldCount int
	Stock     Stock
}

var ErrInvalidProduct = errors.New("inventory: invalid product")

// Validate checks the shape invariants of a product record.
func (p *Product) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidProduct)
	}
	if p.SoldCount < 0 {
		return fmt.Errorf("%w: sold_count must not be negative", ErrInvalidProduct)
	}
	switch s := p.Stock.(type) {
	case FlatStock:
		if s.Stock < 0 {
			return fmt.Errorf("%w: stock must not be negative", ErrInvalidProduct)
		}
	case VariantList:
		if len(s) == 0 {
			return fmt.Errorf("%w: variant list must not be empty", ErrInvalidProduct)
		}
		seen := make(map[string]struct{}, len(s))
		for _, v := range s {
			if v.Size == "" {
				return fmt.Errorf("%w: variant size is required", ErrInvalidProduct)
			}
			if _, dup := seen[v.Size]; dup {
				return fmt.Errorf("%w: duplicate variant size %q", ErrInvalidProduct, v.Size)
			}
			seen[v.Size] = struct{}{}
			if v.Stock < 0 {
				return fmt.Errorf("%w: variant %q stock must not be negative", ErrInvalidProduct, v.Size)
			}
		}
	case nil:
		return fmt.Errorf("%w: stock is required", ErrInvalidProduct)
	default:
		return fmt.Errorf("%w: unknown stock shape %T", ErrInvalidProduct, s)
	}
	return nil
}

// Available returns the counter addressed by size ("" for flat stock) and
// whether such a counter exists.
func (p *Product) Available(size string) (int, bool) {
	switch s := p.Stock.(type) {
	case FlatStock:
		if size != "" {
			return 0, false
		}
		return s.Stock, true
	case VariantList:
		i := s.Index(size)
		if size == "" || i < 0 {
			return 0, false
		}
		return s[i].Stock, true
	}
	return 0, false
}

// Clone returns a deep copy of the product.
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	c := *p
	c.Images = append([]string(nil), p.Images...)
	if vl, ok := p.Stock.(VariantList); ok {
		c.Stock = append(VariantList(nil), vl...)
	}
	return &c
}

// productDoc is the document shape of a product: flat price/stock for legacy
// records, variants otherwise.
type productDoc struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Type      string           `json:"type"`
	Images    []string         `json:"images,omitempty"`
	SoldCount int              `json:"sold_count"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Stock     *int             `json:"stock,omitempty"`
	Variants  VariantList      `json:"variants,omitempty"`
}

func (p Product) MarshalJSON() ([]byte, error) {
	doc := productDoc{
		ID:        p.ID,
		Name:      p.Name,
		Type:      p.Type,
		Images:    p.Images,
		SoldCount: p.SoldCount,
	}
	switch s := p.Stock.(type) {
	case FlatStock:
		price, stock := s.Price, s.Stock
		doc.Price, doc.Stock = &price, &stock
	case VariantList:
		doc.Variants = s
	}
	return json.Marshal(doc)
}

func (p *Product) UnmarshalJSON(b []byte) error {
	var doc productDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	*p = Product{
		ID:        doc.ID,
		Name:      doc.Name,
		Type:      doc.Type,
		Images:    doc.Images,
		SoldCount: doc.SoldCount,
	}
	switch {
	case len(doc.Variants) > 0:
		p.Stock = doc.Variants
	case doc.Stock != nil:
		flat := FlatStock{Stock: *doc.Stock}
		if doc.Price != nil {
			flat.Price = *doc.Price
		}
		p.Stock = flat
	}
	return nil
}
