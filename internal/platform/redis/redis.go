package redis

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"
)

// maxTxBackoff caps the pause between optimistic WATCH retries.
const maxTxBackoff = 5 * time.Millisecond

var ErrTxContention = errors.New("redis: transaction aborted under contention")

// Client wraps go-redis client with a key namespace.
type Client struct {
	*redis.Client
	prefix string
}

// Open creates a new Redis client and pings it to validate the connection.
func Open(ctx context.Context, addr, password string, db int, prefix string) (*Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("empty redis addr")
	}
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return &Client{Client: c, prefix: prefix}, nil
}

// Key builds a namespaced key.
func (c *Client) Key(format string, args ...any) string {
	return c.prefix + fmt.Sprintf(format, args...)
}

// WatchRetry runs fn inside WATCH on keys and retries when a watched key
// changes before EXEC. Every round commits at least one writer, so it only
// gives up when ctx is done.
func (c *Client) WatchRetry(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for attempt := 0; ; attempt++ {
		err := c.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}

		backoff := min(time.Duration(attempt+1)*100*time.Microsecond, maxTxBackoff)
		timer := time.NewTimer(rand.N(backoff) + time.Microsecond)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", ErrTxContention, ctx.Err())
		case <-timer.C:
		}
	}
}
