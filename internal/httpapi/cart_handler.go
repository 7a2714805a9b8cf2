package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/abdelhadiDevWeb/labocart/internal/cartstore"
	"github.com/abdelhadiDevWeb/labocart/internal/catalog"
	"github.com/abdelhadiDevWeb/labocart/internal/domain"
)

// CartStore is the part of cartstore.Store the HTTP layer drives.
type CartStore interface {
	Snapshot() cartstore.Snapshot
	AddItem(ctx context.Context, item domain.Item, quantity int) error
	SetQuantity(ctx context.Context, id int64, quantity int) error
	RemoveItem(ctx context.Context, id int64) error
	Clear(ctx context.Context) error
	Subscribe(fn func(cartstore.Snapshot)) (unsubscribe func())
}

type CartHandler struct {
	store   CartStore
	catalog catalog.Catalog
	timeout time.Duration
}

func NewCartHandler(store CartStore, c catalog.Catalog, timeout time.Duration) *CartHandler {
	return &CartHandler{
		store:   store,
		catalog: c,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ID       int64 `json:"id"`
	Quantity *int  `json:"quantity,omitempty"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.store.Snapshot())
}

// AddItem looks the product up in the catalog so callers cannot invent
// names or prices.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "id must be positive")
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if quantity <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be positive")
		return
	}

	p, err := h.catalog.Get(ctx, req.ID)
	if err != nil {
		handleError(w, err)
		return
	}
	if err := h.store.AddItem(ctx, p.Item(), quantity); err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, h.store.Snapshot())
}

// UpdateQuantity overwrites a line's quantity; zero removes the line.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := productIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "id must be a positive integer")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity == nil || *req.Quantity < 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be zero or more")
		return
	}

	if err := h.store.SetQuantity(ctx, id, *req.Quantity); err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.store.Snapshot())
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := productIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "id must be a positive integer")
		return
	}
	if err := h.store.RemoveItem(ctx, id); err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.store.Snapshot())
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.store.Clear(ctx); err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.store.Snapshot())
}
