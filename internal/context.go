package internal

import (
	"context"
	"time"
)

// WithTimeout returns a context with timeout, defaulting to 10 seconds if
// duration is zero or negative. Outbound gateway calls must always be
// bounded so a slow hosted-checkout API surfaces as a creation failure
// instead of hanging the request.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 10 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
