package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/lMordhel/Poke-Web/internal/logging"
	"github.com/lMordhel/Poke-Web/internal/orders"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// HeaderUserID carries the caller's id, set by the authenticating proxy.
const HeaderUserID = "X-User-ID"

type OrdersHandler struct {
	Placer    *orders.Placer
	Query     *orders.Query
	PageLimit int
	Log       *zap.Logger
}

type CreateOrderReq struct {
	Items []orders.Item   `json:"items"`
	Total decimal.Decimal `json:"total"`
}

type errorResp struct {
	Error  bool   `json:"error"`
	Detail string `json:"detail"`
	Path   string `json:"path"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, detail string) {
	writeJSON(w, code, errorResp{Error: true, Detail: detail, Path: r.URL.Path})
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(HeaderUserID)
	if userID == "" {
		writeError(w, r, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	o, err := h.Placer.Place(r.Context(), orders.PlaceRequest{
		UserID: userID,
		Items:  req.Items,
		Total:  req.Total,
	})
	if err != nil {
		h.placeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

// placeError maps a placement failure to a response. Compensation failures
// were already logged and alarmed by the placer.
func (h *OrdersHandler) placeError(w http.ResponseWriter, r *http.Request, err error) {
	var stockErr *orders.InsufficientStockError
	switch {
	case errors.Is(err, orders.ErrEmptyCart):
		writeError(w, r, http.StatusBadRequest, "Cart cannot be empty")
	case errors.Is(err, orders.ErrValidation):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.As(err, &stockErr):
		detail := fmt.Sprintf("Insufficient stock for %s", stockErr.Item)
		if stockErr.Size != "" {
			detail += " (size " + stockErr.Size + ")"
		}
		writeError(w, r, http.StatusConflict, detail)
	default:
		logging.FromContext(r.Context(), h.Log).Error("checkout_failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "Failed to proceed with checkout")
	}
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(HeaderUserID)
	if userID == "" {
		writeError(w, r, http.StatusUnauthorized, "Not authenticated")
		return
	}

	limit := h.PageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if limit <= 0 || n < limit {
			limit = n
		}
	}

	list, err := h.Query.ListByUser(r.Context(), userID, limit)
	if err != nil {
		logging.FromContext(r.Context(), h.Log).Error("list_orders_failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "Failed to fetch orders")
		return
	}
	if list == nil {
		list = []*orders.Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(HeaderUserID)
	if userID == "" {
		writeError(w, r, http.StatusUnauthorized, "Not authenticated")
		return
	}
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeError(w, r, http.StatusBadRequest, "missing id")
		return
	}

	o, err := h.Query.Get(r.Context(), userID, orderID)
	if errors.Is(err, orders.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "Order not found")
		return
	}
	if err != nil {
		logging.FromContext(r.Context(), h.Log).Error("get_order_failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "Failed to fetch order")
		return
	}
	writeJSON(w, http.StatusOK, o)
}
