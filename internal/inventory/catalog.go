package inventory

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed seed/plush.json
var plushCatalog []byte

// SeedCatalog returns the starter plush catalog.
func SeedCatalog() ([]*Product, error) {
	var products []*Product
	if err := json.Unmarshal(plushCatalog, &products); err != nil {
		return nil, fmt.Errorf("inventory: decode seed catalog: %w", err)
	}
	for _, p := range products {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return products, nil
}

// Seed writes every product through s.
func Seed(ctx context.Context, s Seeder, products []*Product) error {
	for _, p := range products {
		if err := s.Put(ctx, p); err != nil {
			return fmt.Errorf("inventory: seed %s: %w", p.ID, err)
		}
	}
	return nil
}
