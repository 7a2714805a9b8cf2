package cartstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/abdelhadiDevWeb/labocart/internal/domain"
	"github.com/abdelhadiDevWeb/labocart/internal/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const DefaultKey = "cart"

var ErrAlreadyStarted = errors.New("cart store already started")

// Snapshot is a read-only copy of the cart handed to callers and subscribers.
// Version grows with every change seen by the store, so a subscriber that
// receives snapshots out of order can drop the older one.
type Snapshot struct {
	Version    uint64            `json:"version"`
	Items      []domain.LineItem `json:"items"`
	TotalItems int               `json:"total_items"`
	TotalPrice decimal.Decimal   `json:"total_price"`
}

func (s Snapshot) Cart() domain.Cart {
	return domain.Cart{Items: s.Items}.Clone()
}

func (s Snapshot) Empty() bool {
	return len(s.Items) == 0
}

type Option func(*Store)

// WithKey sets the storage key the cart lives under.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Store) { s.log = log }
}

// WithID names the store in logs. Defaults to a random UUID.
func WithID(id string) Option {
	return func(s *Store) { s.id = id }
}

// Store owns one in-memory copy of the cart and mirrors it into shared
// storage. Several stores over the same storage behave like browser tabs:
// each writes its whole cart on every mutation, and the last writer wins.
type Store struct {
	storage storage.Storage
	key     string
	id      string
	log     logrus.FieldLogger

	mu      sync.RWMutex
	cart    domain.Cart
	version uint64

	subMu  sync.Mutex
	subs   map[uint64]func(Snapshot)
	nextID uint64

	sfg singleflight.Group

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(s storage.Storage, opts ...Option) *Store {
	store := &Store{
		storage: s,
		key:     DefaultKey,
		id:      uuid.NewString(),
		log:     logrus.StandardLogger(),
		subs:    make(map[uint64]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(store)
	}
	store.log = store.log.WithFields(logrus.Fields{"store": store.id, "key": store.key})
	return store
}

func (s *Store) ID() string {
	return s.id
}

func (s *Store) Key() string {
	return s.key
}

// Subscribe registers fn to receive a snapshot after every change. fn runs
// on the goroutine that made the change, after the store lock is released,
// so it may read the store or issue further mutations.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) notify(snap Snapshot) {
	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// Snapshot returns a copy of the in-memory cart. It does not read storage.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	cart := s.cart.Clone()
	return Snapshot{
		Version:    s.version,
		Items:      cart.Items,
		TotalItems: cart.TotalItems(),
		TotalPrice: cart.TotalPrice(),
	}
}

func (s *Store) TotalItems() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.TotalItems()
}

func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.TotalPrice()
}

// Load reads the persisted cart into memory and returns it. A missing or
// unreadable value gives an empty cart; only storage failures are returned.
func (s *Store) Load(ctx context.Context) (Snapshot, error) {
	if err := s.Reload(ctx); err != nil {
		return s.Snapshot(), err
	}
	return s.Snapshot(), nil
}

// Reload re-reads storage and notifies subscribers when the content differs
// from the in-memory cart. Concurrent calls share one read.
func (s *Store) Reload(ctx context.Context) error {
	_, err, _ := s.sfg.Do(s.key, func() (interface{}, error) {
		return nil, s.reload(ctx)
	})
	return err
}

func (s *Store) reload(ctx context.Context) error {
	s.mu.Lock()
	cart, err := s.read(ctx)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if cart.Equal(s.cart) {
		s.mu.Unlock()
		return nil
	}
	s.cart = cart
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Debugf("cart reloaded from storage: %d line(s)", len(snap.Items))
	s.notify(snap)
	return nil
}

func (s *Store) read(ctx context.Context) (domain.Cart, error) {
	data, err := s.storage.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Cart{}, nil
	}
	if err != nil {
		return s.cart, fmt.Errorf("read cart: %w", err)
	}

	cart, dropped, err := Decode(data)
	if err != nil {
		s.log.Warnf("persisted cart is unreadable, starting empty: %v", err)
		return domain.Cart{}, nil
	}
	if dropped > 0 {
		s.log.Warnf("dropped %d invalid line(s) from persisted cart", dropped)
	}
	return cart, nil
}

// AddItem adds quantity units of item, merging with an existing line.
func (s *Store) AddItem(ctx context.Context, item domain.Item, quantity int) error {
	return s.mutate(ctx, func(c *domain.Cart) error {
		return c.Add(item, quantity)
	})
}

// AddOne is AddItem with a quantity of one, what the product pages do.
func (s *Store) AddOne(ctx context.Context, item domain.Item) error {
	return s.AddItem(ctx, item, 1)
}

// RemoveItem deletes the line for id. An absent id is not an error.
func (s *Store) RemoveItem(ctx context.Context, id int64) error {
	return s.mutate(ctx, func(c *domain.Cart) error {
		c.Remove(id)
		return nil
	})
}

// SetQuantity overwrites the quantity for id; quantity <= 0 removes the line.
func (s *Store) SetQuantity(ctx context.Context, id int64, quantity int) error {
	return s.mutate(ctx, func(c *domain.Cart) error {
		if err := c.CheckQuantity(id, quantity); err != nil {
			return err
		}
		c.SetQuantity(id, quantity)
		return nil
	})
}

// Clear empties the cart and deletes the persisted value.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	if err := s.storage.Remove(ctx, s.key); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("remove cart: %w", err)
	}
	s.cart = domain.Cart{}
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// mutate applies fn to a copy of the cart, writes the whole result to
// storage and only then makes it current. Subscribers are told about every
// successful mutation, including ones that left the content unchanged.
func (s *Store) mutate(ctx context.Context, fn func(*domain.Cart) error) error {
	s.mu.Lock()
	next := s.cart.Clone()
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return err
	}

	data, err := Encode(next)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.storage.Set(ctx, s.key, data); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("write cart: %w", err)
	}
	s.cart = next
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// Start loads the cart and follows storage change events for the cart key
// until ctx is done or Close is called.
func (s *Store) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	events, err := s.storage.Watch(runCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("watch storage: %w", err)
	}
	if _, err := s.Load(runCtx); err != nil {
		s.log.Errorf("initial cart load failed: %v", err)
	}

	s.cancel = cancel
	s.wg.Add(1)
	go s.run(runCtx, events)
	return nil
}

func (s *Store) run(ctx context.Context, events <-chan storage.Event) {
	defer s.wg.Done()
	s.log.Info("cart store watching storage")

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				s.log.Info("storage watch closed")
				return
			}
			if ev.Key != s.key {
				continue
			}
			if err := s.Reload(ctx); err != nil && ctx.Err() == nil {
				s.log.Errorf("cart reload after %s event failed: %v", ev.Op, err)
			}
		}
	}
}

// Close stops the watch loop started by Start. The storage is left open.
func (s *Store) Close() error {
	s.runMu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.runMu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	return nil
}
