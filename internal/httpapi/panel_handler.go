package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/abdelhadiDevWeb/labocart/internal/cartview"
	"github.com/abdelhadiDevWeb/labocart/internal/domain"
	"github.com/abdelhadiDevWeb/labocart/internal/poller"
	"github.com/sirupsen/logrus"
)

type Panel interface {
	Open(ctx context.Context) cartview.State
	Close() cartview.State
	State() cartview.State
	Checkout() (cartview.State, error)
	Cancel() cartview.State
	ConfirmPurchase(ctx context.Context) (domain.Invoice, error)
	Increment(ctx context.Context, id int64) error
	Decrement(ctx context.Context, id int64) error
}

// Publisher announces session events to other instances.
type Publisher interface {
	Publish(ctx context.Context, eventType string) error
}

type PanelHandler struct {
	panel     Panel
	publisher Publisher
	timeout   time.Duration
	log       logrus.FieldLogger
}

func NewPanelHandler(p Panel, publisher Publisher, timeout time.Duration, log logrus.FieldLogger) *PanelHandler {
	return &PanelHandler{
		panel:     p,
		publisher: publisher,
		timeout:   timeout,
		log:       log,
	}
}

type PurchaseResponse struct {
	Invoice domain.Invoice `json:"invoice"`
	State   cartview.State `json:"state"`
}

func (h *PanelHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.panel.State())
}

func (h *PanelHandler) Open(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	respondJSON(w, http.StatusOK, h.panel.Open(ctx))
}

func (h *PanelHandler) Close(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.panel.Close())
}

// Checkout shows the invoice. An empty cart or a closed panel is a 409.
func (h *PanelHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	state, err := h.panel.Checkout()
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, state)
}

func (h *PanelHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.panel.Cancel())
}

func (h *PanelHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	inv, err := h.panel.ConfirmPurchase(ctx)
	if err != nil {
		handleError(w, err)
		return
	}
	if h.publisher != nil {
		if err := h.publisher.Publish(ctx, poller.EventCheckoutCompleted); err != nil {
			h.log.Warnf("purchase not announced: %v", err)
		}
	}

	respondJSON(w, http.StatusOK, &PurchaseResponse{Invoice: inv, State: h.panel.State()})
}

func (h *PanelHandler) Increment(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, h.panel.Increment)
}

func (h *PanelHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, h.panel.Decrement)
}

func (h *PanelHandler) step(w http.ResponseWriter, r *http.Request, fn func(context.Context, int64) error) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := productIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "id must be a positive integer")
		return
	}
	if err := fn(ctx, id); err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.panel.State())
}
