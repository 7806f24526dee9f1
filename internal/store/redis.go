// Package store – Redis backend.
//
// A single go-redis client serves counters (INCR + PEXPIRE NX), click
// hashes (HINCRBY), and the broker (native Redis pub/sub). All failures are
// wrapped with ErrUnavailable so callers can classify an outage without
// depending on redis error types.
package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis implements Store on a go-redis client.
type Redis struct {
	rdb *redis.Client
	log zerolog.Logger
}

var _ Store = (*Redis)(nil)

// NewRedis wraps an existing client. The caller owns the client's lifecycle.
func NewRedis(rdb *redis.Client, log zerolog.Logger) *Redis {
	return &Redis{rdb: rdb, log: log}
}

// Dial connects to Redis and verifies the connection with a ping.
func Dial(ctx context.Context, addr, password string, db int, log zerolog.Logger) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: ping %s: %v", ErrUnavailable, addr, err)
	}
	return NewRedis(rdb, log), nil
}

// Close releases the underlying client.
func (r *Redis) Close() error { return r.rdb.Close() }

// Ping verifies the connection, for health checks.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: ping: %v", ErrUnavailable, err)
	}
	return nil
}

// IncrWindow increments key and, when this call created the key, attaches
// the window TTL. EXPIRE with NX only sets an expiry when none exists, so
// a crash between INCR and EXPIRE cannot produce an immortal counter on
// the next increment. Second resolution is enough for rate windows.
func (r *Redis) IncrWindow(ctx context.Context, key string, windowMillis int64) (int64, error) {
	pipe := r.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, time.Duration(windowMillis)*time.Millisecond)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: incr %s: %v", ErrUnavailable, key, err)
	}
	return incr.Val(), nil
}

// HIncrBy atomically adds n to a hash field.
func (r *Redis) HIncrBy(ctx context.Context, key, field string, n int64) (int64, error) {
	v, err := r.rdb.HIncrBy(ctx, key, field, n).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: hincrby %s %s: %v", ErrUnavailable, key, field, err)
	}
	return v, nil
}

// HGetAll returns the hash as int64 values; non-numeric fields are skipped.
func (r *Redis) HGetAll(ctx context.Context, key string) (map[string]int64, error) {
	raw, err := r.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: hgetall %s: %v", ErrUnavailable, key, err)
	}
	out := make(map[string]int64, len(raw))
	for field, s := range raw {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			out[field] = v
		}
	}
	return out, nil
}

// Publish sends payload to every subscriber of channel, across processes.
func (r *Redis) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := r.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("%w: publish %s: %v", ErrUnavailable, channel, err)
	}
	return nil
}

// Subscribe consumes channel until ctx is cancelled. Receive errors other
// than cancellation are logged and the loop resubscribes after a short
// backoff; go-redis reconnects transparently underneath.
func (r *Redis) Subscribe(ctx context.Context, channel string, handler func(payload []byte)) error {
	pubsub := r.rdb.Subscribe(ctx, channel)
	defer pubsub.Close()

	r.log.Info().Str("channel", channel).Msg("subscribed to broker channel")

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.Warn().Err(err).Str("channel", channel).Msg("broker receive failed, retrying")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}
		handler([]byte(msg.Payload))
	}
}
