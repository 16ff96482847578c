package ratelimit

import "context"

// RateLimiter caps request throughput per named scope.
type RateLimiter interface {
	Allow(ctx context.Context, scope string) (bool, error)
}
