package storage

import (
	"context"
	"testing"
	"time"

	"github.com/abdelhadiDevWeb/labocart/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupTestMongo(t *testing.T) (*Mongo, string, func()) {
	if testing.Short() {
		t.Skip("skipping mongo container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()

	// Start MongoDB container
	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	s := NewMongo(db, logging.Discard()).WithPollInterval(50 * time.Millisecond)
	require.NoError(t, s.CreateIndexes(ctx))

	cleanup := func() {
		s.Close()
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return s, uri, cleanup
}

func TestMongo_GetSetRemove(t *testing.T) {
	s, _, cleanup := setupTestMongo(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.Get(ctx, "cart")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "cart", []byte(`[{"id":3}]`)))
	got, err := s.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":3}]`, string(got))

	require.NoError(t, s.Set(ctx, "cart", []byte(`[]`)))
	got, err = s.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))

	require.NoError(t, s.Remove(ctx, "cart"))
	_, err = s.Get(ctx, "cart")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Remove(ctx, "cart"))
}

func TestMongo_WatchSeesOtherConnection(t *testing.T) {
	s, uri, cleanup := setupTestMongo(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otherDB, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)
	other := NewMongo(otherDB, logging.Discard())
	defer other.Close()

	events, err := s.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, other.Set(ctx, "cart", []byte(`[]`)))

	select {
	case ev := <-events:
		assert.Equal(t, "cart", ev.Key)
		assert.Equal(t, OpSet, ev.Op)
	case <-time.After(5 * time.Second):
		t.Fatal("no set event")
	}

	require.NoError(t, other.Remove(ctx, "cart"))

	select {
	case ev := <-events:
		assert.Equal(t, OpRemove, ev.Op)
	case <-time.After(5 * time.Second):
		t.Fatal("no remove event")
	}
}

func TestMongo_WatchSeesBackToBackWrites(t *testing.T) {
	s, uri, cleanup := setupTestMongo(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otherDB, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)
	other := NewMongo(otherDB, logging.Discard())
	defer other.Close()

	events, err := s.Watch(ctx)
	require.NoError(t, err)

	// Both land well inside one poll interval, most likely in one millisecond.
	require.NoError(t, other.Set(ctx, "cart", []byte(`[{"id":1}]`)))
	require.NoError(t, s.Set(ctx, "authToken", []byte(`tok`)))

	seen := map[string]bool{}
	deadline := time.After(5 * time.Second)
	for !seen["cart"] || !seen["authToken"] {
		select {
		case ev := <-events:
			seen[ev.Key] = true
		case <-deadline:
			t.Fatalf("missing events, got %v", seen)
		}
	}

	require.NoError(t, other.Set(ctx, "cart", []byte(`[{"id":2}]`)))
	select {
	case ev := <-events:
		assert.Equal(t, "cart", ev.Key)
	case <-time.After(5 * time.Second):
		t.Fatal("no event for rewrite inside the lookback window")
	}

	select {
	case ev := <-events:
		t.Fatalf("unexpected duplicate event %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestMongo_WatchIgnoresEarlierWrites(t *testing.T) {
	s, _, cleanup := setupTestMongo(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Set(ctx, "cart", []byte(`[]`)))

	events, err := s.Watch(ctx)
	require.NoError(t, err)

	select {
	case ev := <-events:
		t.Fatalf("write made before Watch was reported: %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestRevTracker(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 300_400_000, time.UTC)
	stored := base.Truncate(time.Millisecond)

	tr := newRevTracker(time.Second)
	tr.advance(base)

	assert.False(t, stored.Before(tr.since()), "same-millisecond write must fall inside the window")

	assert.True(t, tr.observe("cart", 1, stored))
	assert.False(t, tr.observe("cart", 1, stored), "re-read revision must not be reported twice")
	assert.True(t, tr.observe("cart", 2, stored), "second write in the same millisecond")
	assert.True(t, tr.observe("authToken", 1, stored))

	tr.advance(base.Add(2 * time.Second))
	tr.prune()
	assert.Empty(t, tr.seen)

	// A key seen again after pruning only comes back with a newer write.
	assert.True(t, tr.observe("cart", 3, base.Add(2*time.Second)))
}

func TestRevTracker_WindowFollowsLocalClockOnly(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := newRevTracker(5 * time.Second)
	tr.advance(now)

	// A writer whose clock lags by a few seconds is still inside the window.
	lagging := now.Add(-3 * time.Second)
	assert.False(t, lagging.Before(tr.since()))
	assert.True(t, tr.observe("cart", 1, lagging))

	// Observing a future-dated document does not move the window.
	tr.observe("authToken", 1, now.Add(time.Hour))
	assert.Equal(t, now.Add(-5*time.Second), tr.since())
}
