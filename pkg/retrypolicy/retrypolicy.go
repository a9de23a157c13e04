// Package retrypolicy wraps Destination writes and other transient,
// I/O-bound operations with exponential backoff, generalizing a
// hand-rolled internal/dispatcher/retry_manager.go to a maintained
// library instead.
package retrypolicy

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config controls the exponential backoff schedule.
type Config struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
	MaxRetries      uint64
}

// DefaultConfig mirrors a conventional retry manager's defaults: start
// at 200ms, cap at 10s, give up after 1 minute total.
func DefaultConfig() Config {
	return Config{
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		MaxElapsedTime:  time.Minute,
		MaxRetries:      8,
	}
}

func (c Config) backOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.InitialInterval
	eb.MaxInterval = c.MaxInterval
	eb.MaxElapsedTime = c.MaxElapsedTime
	var b backoff.BackOff = eb
	if c.MaxRetries > 0 {
		b = backoff.WithMaxRetries(b, c.MaxRetries)
	}
	return b
}

// Do runs op, retrying on error per cfg's schedule, until it succeeds,
// the schedule is exhausted, or ctx is cancelled.
func Do(ctx context.Context, cfg Config, op func() error) error {
	return backoff.Retry(op, backoff.WithContext(cfg.backOff(), ctx))
}

// Notify is like Do, but invokes onRetry before each retry attempt with
// the error that triggered it and the delay about to be taken — useful
// for logging a retry the way a hand-rolled retry manager would.
func Notify(ctx context.Context, cfg Config, op func() error, onRetry func(err error, delay time.Duration)) error {
	return backoff.RetryNotify(op, backoff.WithContext(cfg.backOff(), ctx), onRetry)
}
