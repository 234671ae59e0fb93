// Redis-backed event mirror for cross-pod distribution.
//
// In a multi-pod deployment the in-memory Bus only delivers events within a
// single process. RedisMirror republishes every local event on Redis Pub/Sub
// so dashboards and journals attached to other pods receive them too.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trustmesh/backend/internal/circuitbreaker"
)

// RedisMirror forwards events from a local Bus to Redis Pub/Sub channels,
// one channel per event type, under a common prefix. Publishes go through a
// circuit breaker so a Redis outage degrades to local-only delivery instead
// of a timeout per event.
type RedisMirror struct {
	rdb     *redis.Client
	bus     *Bus
	prefix  string
	sub     chan *CloudEvent
	done    chan struct{}
	breaker *circuitbreaker.Breaker
}

// NewRedisMirror connects to Redis and verifies connectivity. The caller
// decides whether a connection failure is fatal or means local-only mode.
func NewRedisMirror(addr, password string, db int, bus *Bus, channelPrefix string) (*RedisMirror, error) {
	if channelPrefix == "" {
		channelPrefix = "trustmesh:events:"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     20,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed (%s): %w", addr, err)
	}

	slog.Info("Redis event mirror connected", "addr", addr, "db", db)
	return &RedisMirror{
		rdb:    rdb,
		bus:    bus,
		prefix: channelPrefix,
		sub:    bus.Subscribe(),
		done:   make(chan struct{}),
		breaker: circuitbreaker.New(circuitbreaker.Config{
			Name:             "redis-mirror",
			FailureThreshold: 5,
			CoolDown:         15 * time.Second,
		}),
	}, nil
}

// Run pumps local events to Redis until Close is called or the context ends.
// Publish failures are logged and dropped; local subscribers already got the
// event, so delivery to remote pods is best-effort.
func (m *RedisMirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case event, ok := <-m.sub:
			if !ok {
				return
			}
			data, err := event.JSON()
			if err != nil {
				slog.Warn("event mirror: marshal failed", "type", event.Type, "error", err)
				continue
			}
			channel := m.prefix + event.Type
			err = m.breaker.Do(func() error {
				return m.rdb.Publish(ctx, channel, data).Err()
			})
			switch {
			case errors.Is(err, circuitbreaker.ErrOpen):
				// Redis is down; local subscribers already got the event.
			case err != nil:
				slog.Warn("event mirror: publish failed", "channel", channel, "error", err)
			}
		}
	}
}

// Close stops the pump and shuts down the Redis client.
func (m *RedisMirror) Close() error {
	close(m.done)
	m.bus.Unsubscribe(m.sub)
	return m.rdb.Close()
}
