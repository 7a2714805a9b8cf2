package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const (
	DefaultTopic   = "session-events"
	DefaultGroupID = "labocart-session-consumer"

	EventLogout            = "logout"
	EventCheckoutCompleted = "checkout_completed"
)

var ErrUnknownEvent = errors.New("unknown session event")

// Event is a session message published by the backend.
type Event struct {
	Type string `json:"type"`
	// CartKey limits the event to one cart; empty means every cart.
	CartKey string `json:"cart_key,omitempty"`
	// Source is the id of the instance that published the event.
	Source string    `json:"source,omitempty"`
	At     time.Time `json:"at,omitempty"`
}

type CartClearer interface {
	Clear(ctx context.Context) error
}

// Logouter ends the local session, token and cart included.
type Logouter interface {
	Logout(ctx context.Context) error
}

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// SessionPoller empties the local cart when the backend reports a logout or
// a completed checkout for it.
type SessionPoller struct {
	reader  MessageReader
	cart    CartClearer
	session Logouter
	key     string
	self    string
	log     logrus.FieldLogger
}

type Config struct {
	Brokers []string
	Topic   string
	GroupID string
	// CartKey is the key of the cart this poller clears.
	CartKey string
	// Self is this instance's id. Events it published itself are skipped.
	Self string
}

func NewSessionPoller(cfg Config, cart CartClearer, session Logouter, log logrus.FieldLogger) *SessionPoller {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.GroupID == "" {
		cfg.GroupID = DefaultGroupID
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MaxBytes: 10e6, // 10MB
	})
	return NewWithReader(reader, cfg.CartKey, cart, session, log).WithSelf(cfg.Self)
}

func NewWithReader(reader MessageReader, cartKey string, cart CartClearer, session Logouter, log logrus.FieldLogger) *SessionPoller {
	return &SessionPoller{
		reader:  reader,
		cart:    cart,
		session: session,
		key:     cartKey,
		log:     log,
	}
}

// WithSelf sets the instance id whose own events are ignored.
func (p *SessionPoller) WithSelf(id string) *SessionPoller {
	p.self = id
	return p
}

// Run reads messages until ctx is done.
func (p *SessionPoller) Run(ctx context.Context) {
	p.log.Info("session poller started")
	for {
		if ctx.Err() != nil {
			p.log.Info("session poller stopped")
			return
		}

		m, err := p.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.log.Errorf("error reading message: %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}

		if err := p.Handle(ctx, m); err != nil {
			p.log.WithField("offset", m.Offset).Warnf("session event not applied: %v", err)
		}
	}
}

// Handle applies one message. Malformed and foreign messages are reported
// and otherwise ignored.
func (p *SessionPoller) Handle(ctx context.Context, m kafka.Message) error {
	var ev Event
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		return fmt.Errorf("error parsing message: %w", err)
	}
	if ev.CartKey != "" && p.key != "" && ev.CartKey != p.key {
		return nil
	}
	// the local effect already happened when the event was published
	if ev.Source != "" && ev.Source == p.self {
		return nil
	}

	switch ev.Type {
	case EventLogout:
		if p.session != nil {
			if err := p.session.Logout(ctx); err != nil {
				return fmt.Errorf("logout: %w", err)
			}
			return nil
		}
		return p.clear(ctx, ev.Type)
	case EventCheckoutCompleted:
		return p.clear(ctx, ev.Type)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}
}

func (p *SessionPoller) clear(ctx context.Context, reason string) error {
	if err := p.cart.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	p.log.Infof("cart cleared after %s", reason)
	return nil
}

func (p *SessionPoller) Close() {
	if err := p.reader.Close(); err != nil {
		p.log.Errorf("error closing reader: %v", err)
	}
}
