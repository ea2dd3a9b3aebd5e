// FilePath: internal/ratelimit/ratelimit.go

// Package ratelimit enforces the socket layer's per-IP connection cap and
// event budget on shared Redis counters, so limits hold across instances.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vialibre/crosshub/internal/errors"
)

// Limiter tracks connections and event counts per client IP.
type Limiter struct {
	rdb            *redis.Client
	maxConnections int
	eventBudget    int
	window         time.Duration
}

func New(rdb *redis.Client, maxConnections, eventBudget int, window time.Duration) *Limiter {
	return &Limiter{
		rdb:            rdb,
		maxConnections: maxConnections,
		eventBudget:    eventBudget,
		window:         window,
	}
}

func connKey(ip string) string   { return fmt.Sprintf("crosshub:conn:%s", ip) }
func eventsKey(ip string) string { return fmt.Sprintf("crosshub:events:%s", ip) }

// CheckConnection reports whether the IP is below its connection cap without
// reserving a slot. Used before authentication so rejected handshakes never
// touch the counter.
func (l *Limiter) CheckConnection(ctx context.Context, ip string) (bool, error) {
	n, err := l.rdb.Get(ctx, connKey(ip)).Int()
	if err != nil {
		if err == redis.Nil {
			return true, nil
		}
		return false, errors.NewInternalError("failed to read connection counter", err)
	}
	return n < l.maxConnections, nil
}

// AcquireConnection reserves a connection slot for the IP. The increment is
// atomic: when two handshakes race past CheckConnection, at most cap slots
// are ever held, the loser is rolled back.
func (l *Limiter) AcquireConnection(ctx context.Context, ip string) (bool, error) {
	n, err := l.rdb.Incr(ctx, connKey(ip)).Result()
	if err != nil {
		return false, errors.NewInternalError("failed to increment connection counter", err)
	}
	if n > int64(l.maxConnections) {
		if err := l.rdb.Decr(ctx, connKey(ip)).Err(); err != nil {
			return false, errors.NewInternalError("failed to roll back connection counter", err)
		}
		return false, nil
	}
	// Refresh the expiry on every acquire so a crashed client that never
	// releases cannot pin its slots forever.
	if err := l.rdb.Expire(ctx, connKey(ip), l.window).Err(); err != nil {
		return false, errors.NewInternalError("failed to expire connection counter", err)
	}
	return true, nil
}

// ReleaseConnection frees a previously acquired slot. The counter never goes
// below zero.
func (l *Limiter) ReleaseConnection(ctx context.Context, ip string) error {
	n, err := l.rdb.Decr(ctx, connKey(ip)).Result()
	if err != nil {
		return errors.NewInternalError("failed to decrement connection counter", err)
	}
	if n < 0 {
		if err := l.rdb.Set(ctx, connKey(ip), 0, 0).Err(); err != nil {
			return errors.NewInternalError("failed to reset connection counter", err)
		}
	}
	return nil
}

// AllowEvent counts one inbound event against the IP's budget for the
// current window and reports whether it is allowed. The first event of a
// window starts the expiry clock.
func (l *Limiter) AllowEvent(ctx context.Context, ip string) (bool, error) {
	key := eventsKey(ip)
	n, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, errors.NewInternalError("failed to increment event counter", err)
	}
	if n == 1 {
		if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
			return false, errors.NewInternalError("failed to expire event counter", err)
		}
	}
	return n <= int64(l.eventBudget), nil
}
