package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// NewLocal returns an in-process token bucket. rps <= 0 disables pacing.
func NewLocal(rps float64, burst int) *rate.Limiter {
	if burst < 1 {
		burst = 1
	}
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

type Waiter interface {
	Wait(ctx context.Context) error
}

// Chain waits on every limiter in order.
type Chain []Waiter

func (c Chain) Wait(ctx context.Context) error {
	for _, w := range c {
		if w == nil {
			continue
		}
		if err := w.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}
