package storage

import (
	"context"
	"testing"
	"time"

	"github.com/abdelhadiDevWeb/labocart/internal/logging"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and a Redis storage on top of it
func setupTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	s := NewRedis(client, "labocart", logging.Discard())
	t.Cleanup(func() { s.Close() })

	return s, mr
}

func TestRedis_Get_Success(t *testing.T) {
	s, mr := setupTestRedis(t)

	require.NoError(t, mr.Set("labocart:cart", `[{"id":1}]`))

	got, err := s.Get(context.Background(), "cart")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1}]`, string(got))
}

func TestRedis_Get_Missing(t *testing.T) {
	s, _ := setupTestRedis(t)

	got, err := s.Get(context.Background(), "cart")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, got)
}

func TestRedis_Set_StoresWithoutTTL(t *testing.T) {
	s, mr := setupTestRedis(t)

	require.NoError(t, s.Set(context.Background(), "cart", []byte(`[]`)))

	stored, err := mr.Get("labocart:cart")
	require.NoError(t, err)
	assert.Equal(t, `[]`, stored)
	assert.Equal(t, time.Duration(0), mr.TTL("labocart:cart"))
}

func TestRedis_Remove(t *testing.T) {
	s, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "cart", []byte(`[]`)))
	assert.True(t, mr.Exists("labocart:cart"))

	require.NoError(t, s.Remove(ctx, "cart"))
	assert.False(t, mr.Exists("labocart:cart"))

	// Deleting a missing key should not error
	assert.NoError(t, s.Remove(ctx, "cart"))
}

func TestRedis_WatchSeesWritesFromOtherClients(t *testing.T) {
	s, mr := setupTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	other := NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "labocart", logging.Discard())
	defer other.Close()

	events, err := s.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, other.Set(ctx, "cart", []byte(`[]`)))
	require.NoError(t, other.Remove(ctx, "cart"))

	select {
	case ev := <-events:
		assert.Equal(t, "cart", ev.Key)
		assert.Equal(t, OpSet, ev.Op)
	case <-time.After(2 * time.Second):
		t.Fatal("no set event")
	}
	select {
	case ev := <-events:
		assert.Equal(t, OpRemove, ev.Op)
	case <-time.After(2 * time.Second):
		t.Fatal("no remove event")
	}

	cancel()
	require.Eventually(t, func() bool {
		_, open := <-events
		return !open
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRedis_PrefixIsolatesNamespaces(t *testing.T) {
	s, mr := setupTestRedis(t)
	ctx := context.Background()

	other := NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "elsewhere", logging.Discard())
	defer other.Close()

	require.NoError(t, other.Set(ctx, "cart", []byte(`[1]`)))

	_, err := s.Get(ctx, "cart")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedis_InitializeAndPing(t *testing.T) {
	s, _ := setupTestRedis(t)
	require.NoError(t, s.Initialize(context.Background(), 3))
}

func TestRedis_InitializeGivesUp(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	s := NewRedis(client, "labocart", logging.Discard())
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.Initialize(ctx, 2)
	assert.Error(t, err)
	assert.Error(t, s.Ping(ctx))
}

func TestRedis_DataKeyFormat(t *testing.T) {
	s, _ := setupTestRedis(t)
	assert.Equal(t, "labocart:cart", s.dataKey("cart"))
	assert.Equal(t, "labocart:events", s.channel())
}
