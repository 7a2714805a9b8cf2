package storage

import (
	"context"
	"sync"
	"time"
)

// Memory keeps every key in a process-local map. Several cart stores sharing
// one Memory behave like browser tabs sharing localStorage.
type Memory struct {
	mu     sync.RWMutex
	data   map[string][]byte
	events *fanout
	closed bool
	done   chan struct{}
}

func NewMemory() *Memory {
	return &Memory{
		data:   make(map[string][]byte),
		events: newFanout(),
		done:   make(chan struct{}),
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	value, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[key] = stored
	m.events.publish(Event{Key: key, Op: OpSet, At: time.Now()})
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	if _, ok := m.data[key]; !ok {
		return nil
	}
	delete(m.data, key)
	m.events.publish(Event{Key: key, Op: OpRemove, At: time.Now()})
	return nil
}

func (m *Memory) Watch(ctx context.Context) (<-chan Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	ch := m.events.add()
	go func() {
		select {
		case <-ctx.Done():
		case <-m.done:
			return
		}
		m.mu.Lock()
		m.events.remove(ch)
		m.mu.Unlock()
	}()
	return ch, nil
}

func (m *Memory) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close drops all data and closes every watch channel. Watchers whose
// context is still live are released as well.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.done)
	m.events.closeAll()
	m.data = nil
	return nil
}
