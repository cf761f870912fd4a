package domain

import (
	"context"
	"time"
)

// LockManager provides the per-task-class "in progress" markers. A task
// acquires its own lock before running a cycle; ErrLockHeld means the
// previous invocation is still running and this one must be skipped.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// RateLimiter throttles read-side exchange calls across the process.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// StreamMessage is a single entry read from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub for dashboard events and durable streams for
// advisory headlines.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// Bus channels and streams used across the process.
const (
	ChannelEvents  = "events"   // dashboard fan-out
	StreamAdvisory = "advisory" // classified headlines for the news scanner
)
