package internal

import (
	"context"
	"time"
)

// DefaultCheckTimeout bounds dependency checks (database ping, storage stat)
// so a hung dependency turns into an unhealthy report instead of a stuck
// request.
const DefaultCheckTimeout = 5 * time.Second

// WithTimeout returns a context with the given timeout, falling back to
// DefaultCheckTimeout when the duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = DefaultCheckTimeout
	}
	return context.WithTimeout(ctx, duration)
}
