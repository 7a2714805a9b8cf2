package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/abdelhadiDevWeb/labocart/internal/catalog"
	"github.com/abdelhadiDevWeb/labocart/internal/domain"
)

type CatalogHandler struct {
	catalog catalog.Catalog
	picks   *catalog.CompareSet
	timeout time.Duration
}

func NewCatalogHandler(c catalog.Catalog, timeout time.Duration) *CatalogHandler {
	return &CatalogHandler{
		catalog: c,
		picks:   &catalog.CompareSet{},
		timeout: timeout,
	}
}

type ProductsResponse struct {
	Products []domain.Product `json:"products"`
}

type CategoriesResponse struct {
	Categories []string `json:"categories"`
}

// PicksResponse lists the products picked for comparison. Comparison is set
// once two are picked.
type PicksResponse struct {
	IDs        []int64             `json:"ids"`
	Comparison *catalog.Comparison `json:"comparison,omitempty"`
}

// List serves GET /products?q=&category=.
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q := catalog.Query{
		Text:     r.URL.Query().Get("q"),
		Category: r.URL.Query().Get("category"),
	}
	products, err := h.catalog.Search(ctx, q)
	if err != nil {
		handleError(w, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}

	respondJSON(w, http.StatusOK, &ProductsResponse{Products: products})
}

func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := productIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "id must be a positive integer")
		return
	}
	p, err := h.catalog.Get(ctx, id)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) Categories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cats, err := h.catalog.Categories(ctx)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, &CategoriesResponse{Categories: cats})
}

// Compare serves GET /products/compare?id1=&id2=.
func (h *CatalogHandler) Compare(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id1, err1 := strconv.ParseInt(r.URL.Query().Get("id1"), 10, 64)
	id2, err2 := strconv.ParseInt(r.URL.Query().Get("id2"), 10, 64)
	if err1 != nil || err2 != nil || id1 <= 0 || id2 <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "id1 and id2 must be positive integers")
		return
	}

	cmp, err := catalog.Compare(ctx, h.catalog, id1, id2)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cmp)
}

func (h *CatalogHandler) Picks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.respondPicks(ctx, w)
}

// TogglePick serves POST /products/compare/picks/{id}: picks the product, or
// unpicks it when already picked. A third pick replaces the oldest.
func (h *CatalogHandler) TogglePick(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := productIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "id must be a positive integer")
		return
	}
	if _, err := h.catalog.Get(ctx, id); err != nil {
		handleError(w, err)
		return
	}
	h.picks.Toggle(id)
	h.respondPicks(ctx, w)
}

func (h *CatalogHandler) ResetPicks(w http.ResponseWriter, r *http.Request) {
	h.picks.Reset()
	respondJSON(w, http.StatusOK, &PicksResponse{IDs: []int64{}})
}

func (h *CatalogHandler) respondPicks(ctx context.Context, w http.ResponseWriter) {
	resp := &PicksResponse{IDs: h.picks.IDs()}
	if id1, id2, ok := h.picks.Ready(); ok {
		cmp, err := catalog.Compare(ctx, h.catalog, id1, id2)
		if err != nil {
			handleError(w, err)
			return
		}
		resp.Comparison = &cmp
	}
	respondJSON(w, http.StatusOK, resp)
}
