package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("key not found")
	ErrClosed   = errors.New("storage closed")
)

type Op string

const (
	OpSet    Op = "set"
	OpRemove Op = "remove"
)

// Event tells watchers that a key changed. It carries no value: receivers
// re-read the key, so a burst of events for one key collapses into one reload.
type Event struct {
	Key string    `json:"key"`
	Op  Op        `json:"op"`
	At  time.Time `json:"at"`
}

// Storage is a string-keyed blob store shared by every cart instance that
// points at it. Writes are whole-value overwrites; there is no compare-and-set,
// so concurrent writers resolve last-writer-wins.
type Storage interface {
	// Get returns ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Remove of an absent key is not an error.
	Remove(ctx context.Context, key string) error
	// Watch streams change events until ctx is done or the storage is
	// closed, then closes the channel.
	Watch(ctx context.Context) (<-chan Event, error)
	Ping(ctx context.Context) error
	Close() error
}

// watcherBuffer bounds how far a slow watcher may lag before events for it
// are dropped. A dropped event is harmless when a later one for the same key
// is still queued, which is the common case for the cart key.
const watcherBuffer = 64

// fanout distributes events to watchers without blocking writers.
type fanout struct {
	subs map[chan Event]struct{}
}

func newFanout() *fanout {
	return &fanout{subs: make(map[chan Event]struct{})}
}

func (f *fanout) add() chan Event {
	ch := make(chan Event, watcherBuffer)
	f.subs[ch] = struct{}{}
	return ch
}

func (f *fanout) remove(ch chan Event) {
	if _, ok := f.subs[ch]; ok {
		delete(f.subs, ch)
		close(ch)
	}
}

func (f *fanout) publish(ev Event) {
	for ch := range f.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (f *fanout) closeAll() {
	for ch := range f.subs {
		delete(f.subs, ch)
		close(ch)
	}
}
