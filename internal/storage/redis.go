package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Redis stores keys as plain strings under a prefix and announces every
// write on a pub/sub channel, which is what other processes watch.
type Redis struct {
	client *redis.Client
	prefix string
	log    logrus.FieldLogger
}

func NewRedis(client *redis.Client, prefix string, log logrus.FieldLogger) *Redis {
	return &Redis{
		client: client,
		prefix: prefix,
		log:    log,
	}
}

// Initialize waits for the server with exponential backoff, capped at 5s
// between attempts.
func (r *Redis) Initialize(ctx context.Context, attempts int) error {
	for i := 0; i < attempts; i++ {
		err := r.Ping(ctx)
		if err == nil {
			r.log.Infof("redis storage ready after %d attempt(s)", i+1)
			return nil
		}
		r.log.Warnf("redis ping failed (attempt %d/%d): %v", i+1, attempts, err)

		backoff := time.Duration(100*(1<<uint(i))) * time.Millisecond
		if backoff > 5*time.Second {
			backoff = 5 * time.Second
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("redis not reachable after %d attempts", attempts)
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.dataKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.dataKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	r.publish(ctx, Event{Key: key, Op: OpSet, At: time.Now()})
	return nil
}

func (r *Redis) Remove(ctx context.Context, key string) error {
	n, err := r.client.Del(ctx, r.dataKey(key)).Result()
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	if n > 0 {
		r.publish(ctx, Event{Key: key, Op: OpRemove, At: time.Now()})
	}
	return nil
}

// publish failures are logged, not returned: the value is already stored and
// watchers will catch up on their next event.
func (r *Redis) publish(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		r.log.Errorf("marshal storage event failed: %v", err)
		return
	}
	if err := r.client.Publish(ctx, r.channel(), payload).Err(); err != nil {
		r.log.Errorf("redis publish failed: %v", err)
	}
}

func (r *Redis) Watch(ctx context.Context) (<-chan Event, error) {
	sub := r.client.Subscribe(ctx, r.channel())
	// Wait for the subscription confirmation so that writes issued after
	// Watch returns are guaranteed to be seen.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe failed: %w", err)
	}

	out := make(chan Event, watcherBuffer)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					r.log.Warnf("ignoring malformed storage event: %v", err)
					continue
				}
				select {
				case out <- ev:
				default:
				}
			}
		}
	}()
	return out, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) dataKey(key string) string {
	return fmt.Sprintf("%s:%s", r.prefix, key)
}

func (r *Redis) channel() string {
	return fmt.Sprintf("%s:events", r.prefix)
}
