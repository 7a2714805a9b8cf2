package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultPollInterval = 500 * time.Millisecond

	// defaultLookback is how far behind the newest updated_at each poll
	// re-reads. It absorbs millisecond truncation of BSON dates and clock
	// skew between writers; revisions keep re-read documents from being
	// reported twice.
	defaultLookback = 5 * time.Second
)

type mongoEntry struct {
	Key       string    `bson:"_id"`
	Value     []byte    `bson:"value,omitempty"`
	Deleted   bool      `bson:"deleted"`
	Rev       int64     `bson:"rev"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Mongo stores one document per key. Removals leave a tombstone so that
// pollers can tell a delete from a key that never existed.
type Mongo struct {
	collection   *mongo.Collection
	pollInterval time.Duration
	lookback     time.Duration
	log          logrus.FieldLogger

	once sync.Once
	done chan struct{}
}

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(2)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

func NewMongo(db *mongo.Database, log logrus.FieldLogger) *Mongo {
	return &Mongo{
		collection:   db.Collection("storage"),
		pollInterval: defaultPollInterval,
		lookback:     defaultLookback,
		log:          log,
		done:         make(chan struct{}),
	}
}

// WithPollInterval sets how often Watch looks for changed documents.
func (m *Mongo) WithPollInterval(d time.Duration) *Mongo {
	m.pollInterval = d
	return m
}

// WithLookback sets the clock skew tolerated between writers.
func (m *Mongo) WithLookback(d time.Duration) *Mongo {
	m.lookback = d
	return m
}

func (m *Mongo) CreateIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "updated_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (m *Mongo) Get(ctx context.Context, key string) ([]byte, error) {
	var entry mongoEntry
	err := m.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if entry.Deleted {
		return nil, ErrNotFound
	}
	return entry.Value, nil
}

func (m *Mongo) Set(ctx context.Context, key string, value []byte) error {
	update := bson.M{
		"$set": bson.M{
			"value":      value,
			"deleted":    false,
			"updated_at": time.Now().UTC(),
		},
		"$inc": bson.M{"rev": 1},
	}
	_, err := m.collection.UpdateOne(ctx, bson.M{"_id": key}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (m *Mongo) Remove(ctx context.Context, key string) error {
	filter := bson.M{"_id": key, "deleted": false}
	update := bson.M{
		"$set":   bson.M{"deleted": true, "updated_at": time.Now().UTC()},
		"$unset": bson.M{"value": ""},
		"$inc":   bson.M{"rev": 1},
	}
	if _, err := m.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

// Watch polls for documents whose revision moved past the one last seen.
// Only changes made after Watch is called are reported.
func (m *Mongo) Watch(ctx context.Context) (<-chan Event, error) {
	select {
	case <-m.done:
		return nil, ErrClosed
	default:
	}

	revs := newRevTracker(m.lookback)
	// Baseline: everything already in the window counts as seen.
	if err := m.poll(ctx, revs, nil); err != nil {
		return nil, fmt.Errorf("failed to start watch: %w", err)
	}

	out := make(chan Event, watcherBuffer)
	go func() {
		defer close(out)
		ticker := time.NewTicker(m.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-m.done:
				return
			case <-ticker.C:
				if err := m.poll(ctx, revs, out); err != nil && ctx.Err() == nil {
					m.log.Warnf("mongo storage poll failed: %v", err)
				}
			}
		}
	}()
	return out, nil
}

// poll reads every document inside the tracker's window and sends an event
// for each one whose revision is new. A nil out only records revisions.
func (m *Mongo) poll(ctx context.Context, revs *revTracker, out chan<- Event) error {
	revs.advance(time.Now().UTC())
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}})
	filter := bson.M{"updated_at": bson.M{"$gte": revs.since()}}
	cur, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var entry mongoEntry
		if err := cur.Decode(&entry); err != nil {
			return err
		}
		if !revs.observe(entry.Key, entry.Rev, entry.UpdatedAt) || out == nil {
			continue
		}
		op := OpSet
		if entry.Deleted {
			op = OpRemove
		}
		select {
		case out <- Event{Key: entry.Key, Op: op, At: entry.UpdatedAt}:
		default:
		}
	}
	if err := cur.Err(); err != nil {
		return err
	}
	revs.prune()
	return nil
}

// revTracker remembers the last revision reported per key, limited to the
// documents that can still fall inside the poll window. The window trails the
// watcher's own clock, so a writer whose clock runs ahead cannot push it past
// other writers.
type revTracker struct {
	lookback time.Duration
	latest   time.Time
	seen     map[string]seenRev
}

type seenRev struct {
	rev int64
	at  time.Time
}

func newRevTracker(lookback time.Duration) *revTracker {
	return &revTracker{lookback: lookback, seen: make(map[string]seenRev)}
}

func (t *revTracker) advance(at time.Time) {
	if at.After(t.latest) {
		t.latest = at
	}
}

// since is the lower bound of the next poll, truncated to the millisecond
// precision BSON dates are stored with.
func (t *revTracker) since() time.Time {
	return t.latest.Add(-t.lookback).Truncate(time.Millisecond)
}

// observe records a document and reports whether its revision is new.
func (t *revTracker) observe(key string, rev int64, at time.Time) bool {
	if prev, ok := t.seen[key]; ok && rev <= prev.rev {
		return false
	}
	t.seen[key] = seenRev{rev: rev, at: at}
	return true
}

func (t *revTracker) prune() {
	cutoff := t.since()
	for key, s := range t.seen {
		if s.at.Before(cutoff) {
			delete(t.seen, key)
		}
	}
}

func (m *Mongo) Ping(ctx context.Context) error {
	if err := m.collection.Database().Client().Ping(ctx, nil); err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return nil
}

// Close stops pollers and disconnects the client.
func (m *Mongo) Close() error {
	var err error
	m.once.Do(func() {
		close(m.done)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = m.collection.Database().Client().Disconnect(ctx)
	})
	return err
}
