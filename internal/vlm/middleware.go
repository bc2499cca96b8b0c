package vlm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// WithTimeout bounds every Invoke call by d. A zero d returns b unchanged.
func WithTimeout(b Backend, d time.Duration) Backend {
	if d <= 0 {
		return b
	}
	return &timeoutBackend{Backend: b, timeout: d}
}

type timeoutBackend struct {
	Backend
	timeout time.Duration
}

func (t *timeoutBackend) Invoke(ctx context.Context, img *Image, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	out, err := t.Backend.Invoke(ctx, img, prompt)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !IsInference(err) {
		err = inferenceError(t, fmt.Errorf("call exceeded %s: %w", t.timeout, err))
	}
	return out, err
}

// RetryPolicy configures WithRetry.
type RetryPolicy struct {
	// MaxRetries is the number of attempts after the first. Zero disables retry.
	MaxRetries uint
	// InitialInterval is the first backoff delay; defaults to 500ms.
	InitialInterval time.Duration
	// MaxInterval caps the backoff delay; defaults to 10s.
	MaxInterval time.Duration
}

// WithRetry retries failed calls with exponential backoff. Only
// *InferenceError failures are retried; anything else returns immediately.
func WithRetry(b Backend, policy RetryPolicy, log *zap.Logger) Backend {
	if policy.MaxRetries == 0 {
		return b
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &retryBackend{Backend: b, policy: policy, log: log}
}

type retryBackend struct {
	Backend
	policy RetryPolicy
	log    *zap.Logger
}

func (r *retryBackend) Invoke(ctx context.Context, img *Image, prompt string) (string, error) {
	return Retry(ctx, r.policy, r.log, func() (string, error) {
		return r.Backend.Invoke(ctx, img, prompt)
	})
}

// Retry runs op under policy. It is exported so callers can attach a retry
// policy to a larger unit of work than one backend call.
func Retry[T any](ctx context.Context, policy RetryPolicy, log *zap.Logger, op func() (T, error)) (T, error) {
	if policy.MaxRetries == 0 {
		return op()
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = policy.InitialInterval
	if eb.InitialInterval <= 0 {
		eb.InitialInterval = 500 * time.Millisecond
	}
	eb.MaxInterval = policy.MaxInterval
	if eb.MaxInterval <= 0 {
		eb.MaxInterval = 10 * time.Second
	}

	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		out, err := op()
		if err != nil && !IsInference(err) {
			return out, backoff.Permanent(err)
		}
		return out, err
	},
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(policy.MaxRetries+1),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn("VLM call failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", next),
				zap.Error(err))
		}),
	)
}
