package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/abdelhadiDevWeb/labocart/internal/cartstore"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const writeWait = 10 * time.Second

// Subscriber is anything that pushes cart snapshots.
type Subscriber interface {
	Snapshot() cartstore.Snapshot
	Subscribe(fn func(cartstore.Snapshot)) (unsubscribe func())
}

// EventsHandler streams cart snapshots over a websocket: the current one on
// connect, then every change. A slow client only gets the newest snapshot.
type EventsHandler struct {
	store    Subscriber
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

func NewEventsHandler(store Subscriber, log logrus.FieldLogger) *EventsHandler {
	return &EventsHandler{
		store: store,
		log:   log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	var (
		mu      sync.Mutex
		pending *cartstore.Snapshot
		wake    = make(chan struct{}, 1)
	)
	unsubscribe := h.store.Subscribe(func(snap cartstore.Snapshot) {
		mu.Lock()
		if pending == nil || snap.Version > pending.Version {
			pending = &snap
		}
		mu.Unlock()
		select {
		case wake <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	// the client never sends anything we use; reading detects the close
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	current := h.store.Snapshot()
	if err := h.write(conn, current); err != nil {
		return
	}
	sent := current.Version

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-wake:
			mu.Lock()
			next := pending
			pending = nil
			mu.Unlock()
			if next == nil || next.Version <= sent {
				continue
			}
			if err := h.write(conn, *next); err != nil {
				return
			}
			sent = next.Version
		}
	}
}

func (h *EventsHandler) write(conn *websocket.Conn, snap cartstore.Snapshot) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(snap); err != nil {
		h.log.Debugf("websocket write failed: %v", err)
		return err
	}
	return nil
}
