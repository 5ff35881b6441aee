// Package retry provides bounded retry with exponential backoff for
// outbound calls to collaborators.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Config is the retry policy.
type Config struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the computed backoff.
	MaxDelay time.Duration
	// Multiplier is the exponential backoff factor.
	Multiplier float64
	// Jitter randomizes each delay by ±10% to avoid retry storms.
	Jitter bool
}

// DefaultConfig matches the reservation contract: 3 attempts, exponential
// backoff from a fixed base interval.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// ComputeDelay returns the wait before retrying after the given zero-based
// attempt number.
func (c Config) ComputeDelay(attempt int) time.Duration {
	base := float64(c.InitialDelay.Milliseconds()) * math.Pow(c.Multiplier, float64(attempt))
	capped := math.Min(base, float64(c.MaxDelay.Milliseconds()))
	if c.Jitter {
		jitterRange := capped * 0.1
		capped = capped - jitterRange + rand.Float64()*jitterRange*2.0
	}
	return time.Duration(capped) * time.Millisecond
}

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Do returns it immediately instead of retrying.
// Use it for definitive rejections such as insufficient stock.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Error reports a retry budget exhausted without success.
type Error struct {
	Attempts  int
	LastError error
}

func (e *Error) Error() string {
	return fmt.Sprintf("retry: all %d attempts failed: %v", e.Attempts, e.LastError)
}

func (e *Error) Unwrap() error { return e.LastError }

// Do runs operation under the policy. A nil return stops immediately; an
// error wrapped with Permanent is unwrapped and returned without further
// attempts; context cancellation aborts the wait between attempts.
func Do(ctx context.Context, cfg Config, operation func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		err := operation(ctx)
		if err == nil {
			return nil
		}
		var pe *permanentError
		if errors.As(err, &pe) {
			return pe.err
		}
		lastErr = err

		if attempt+1 < cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.ComputeDelay(attempt)):
			}
		}
	}
	return &Error{Attempts: cfg.MaxAttempts, LastError: lastErr}
}
