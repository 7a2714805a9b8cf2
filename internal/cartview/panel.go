package cartview

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/abdelhadiDevWeb/labocart/internal/cartstore"
	"github.com/abdelhadiDevWeb/labocart/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrEmptyCart = errors.New("cart is empty")
	ErrClosed    = errors.New("panel is closed")
)

// CartStore is what the panel needs from the cart.
type CartStore interface {
	Load(ctx context.Context) (cartstore.Snapshot, error)
	Snapshot() cartstore.Snapshot
	Subscribe(fn func(cartstore.Snapshot)) (unsubscribe func())
	SetQuantity(ctx context.Context, id int64, quantity int) error
	RemoveItem(ctx context.Context, id int64) error
	Clear(ctx context.Context) error
}

// State is what the panel currently shows.
type State struct {
	Open        bool              `json:"open"`
	ShowInvoice bool              `json:"show_invoice"`
	Items       []domain.LineItem `json:"items"`
	TotalItems  int               `json:"total_items"`
	TotalPrice  decimal.Decimal   `json:"total_price"`
	Invoice     *domain.Invoice   `json:"invoice,omitempty"`
}

type Option func(*Panel)

func WithTaxRate(rate decimal.Decimal) Option {
	return func(p *Panel) { p.taxRate = rate }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(p *Panel) { p.log = log }
}

// OnChange registers a callback run after every state change, outside the
// panel lock.
func OnChange(fn func(State)) Option {
	return func(p *Panel) { p.onChange = fn }
}

// Panel is the side cart panel. It mirrors the store for as long as it is
// mounted and derives an invoice on demand.
type Panel struct {
	store    CartStore
	taxRate  decimal.Decimal
	log      logrus.FieldLogger
	onChange func(State)

	mu          sync.RWMutex
	open        bool
	showInvoice bool
	snap        cartstore.Snapshot

	unsubscribe func()
}

// Mount creates a panel and subscribes it to the store. Call Unmount to stop
// mirroring.
func Mount(store CartStore, opts ...Option) *Panel {
	p := &Panel{
		store:   store,
		taxRate: domain.DefaultTaxRate,
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.snap = store.Snapshot()
	p.unsubscribe = store.Subscribe(p.apply)
	return p
}

func (p *Panel) Unmount() {
	p.unsubscribe()
}

// apply takes a store snapshot unless a newer one has already arrived.
func (p *Panel) apply(snap cartstore.Snapshot) {
	p.mu.Lock()
	if snap.Version < p.snap.Version {
		p.mu.Unlock()
		return
	}
	p.snap = snap
	// an invoice for an emptied cart has nothing left to show
	if snap.Empty() {
		p.showInvoice = false
	}
	state := p.stateLocked()
	p.mu.Unlock()

	p.changed(state)
}

func (p *Panel) changed(state State) {
	if p.onChange != nil {
		p.onChange(state)
	}
}

// Open shows the panel after re-reading the cart, so items added while it
// was closed are visible.
func (p *Panel) Open(ctx context.Context) State {
	snap, err := p.store.Load(ctx)
	if err != nil {
		p.log.Warnf("panel reload failed, showing last known cart: %v", err)
	}

	p.mu.Lock()
	if snap.Version >= p.snap.Version {
		p.snap = snap
	}
	p.open = true
	p.showInvoice = false
	state := p.stateLocked()
	p.mu.Unlock()

	p.changed(state)
	return state
}

func (p *Panel) Close() State {
	p.mu.Lock()
	p.open = false
	p.showInvoice = false
	state := p.stateLocked()
	p.mu.Unlock()

	p.changed(state)
	return state
}

func (p *Panel) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stateLocked()
}

func (p *Panel) stateLocked() State {
	cart := p.snap.Cart()
	state := State{
		Open:        p.open,
		ShowInvoice: p.showInvoice,
		Items:       cart.Items,
		TotalItems:  p.snap.TotalItems,
		TotalPrice:  p.snap.TotalPrice,
	}
	if p.showInvoice {
		inv := domain.NewInvoice(cart, p.taxRate)
		state.Invoice = &inv
	}
	return state
}

// Invoice derives subtotal, tax and total from the mirrored cart.
func (p *Panel) Invoice() domain.Invoice {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return domain.NewInvoice(p.snap.Cart(), p.taxRate)
}

// Checkout switches the panel to the invoice view.
func (p *Panel) Checkout() (State, error) {
	p.mu.Lock()
	if !p.open {
		p.mu.Unlock()
		return State{}, ErrClosed
	}
	if p.snap.Empty() {
		p.mu.Unlock()
		return State{}, ErrEmptyCart
	}
	p.showInvoice = true
	state := p.stateLocked()
	p.mu.Unlock()

	p.changed(state)
	return state, nil
}

// Cancel leaves the invoice view and returns to the item list.
func (p *Panel) Cancel() State {
	p.mu.Lock()
	p.showInvoice = false
	state := p.stateLocked()
	p.mu.Unlock()

	p.changed(state)
	return state
}

// ConfirmPurchase is a mock purchase: it clears the cart and closes the
// panel. Nothing is ordered or charged.
func (p *Panel) ConfirmPurchase(ctx context.Context) (domain.Invoice, error) {
	p.mu.RLock()
	empty := p.snap.Empty()
	inv := domain.NewInvoice(p.snap.Cart(), p.taxRate)
	p.mu.RUnlock()

	if empty {
		return domain.Invoice{}, ErrEmptyCart
	}
	if err := p.store.Clear(ctx); err != nil {
		return domain.Invoice{}, fmt.Errorf("clear cart: %w", err)
	}
	p.Close()

	p.log.WithFields(logrus.Fields{
		"lines": len(inv.Lines),
		"total": inv.Total.String(),
	}).Info("purchase confirmed")
	return inv, nil
}

// Increment and Decrement are the +/- buttons on a line. Decrementing a line
// at quantity one removes it.
func (p *Panel) Increment(ctx context.Context, id int64) error {
	return p.step(ctx, id, 1)
}

func (p *Panel) Decrement(ctx context.Context, id int64) error {
	return p.step(ctx, id, -1)
}

func (p *Panel) step(ctx context.Context, id int64, delta int) error {
	p.mu.RLock()
	line, ok := p.snap.Cart().Find(id)
	p.mu.RUnlock()
	if !ok {
		return nil
	}
	if delta > 0 && line.Quantity > math.MaxInt-delta {
		return fmt.Errorf("%w: item %d is at the maximum quantity", domain.ErrInvalidQuantity, id)
	}
	return p.store.SetQuantity(ctx, id, line.Quantity+delta)
}

func (p *Panel) SetQuantity(ctx context.Context, id int64, quantity int) error {
	return p.store.SetQuantity(ctx, id, quantity)
}

func (p *Panel) Remove(ctx context.Context, id int64) error {
	return p.store.RemoveItem(ctx, id)
}
