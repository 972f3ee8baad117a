// Package domain defines entities, ports and the error taxonomy shared by the service.
package domain

import (
	"errors"
	"math/rand/v2"
	"time"
)

// RetryConfig defines redelivery behaviour for feedback jobs.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts
	MaxRetries int
	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration
	// MaxDelay caps the delay between retries
	MaxDelay time.Duration
	// Multiplier is the exponential backoff multiplier
	Multiplier float64
	// Jitter adds up to 10% randomness to each delay
	Jitter bool
}

// DefaultRetryConfig returns the worker's default redelivery policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// IsRetryable reports whether a job failure may succeed on a later attempt.
// Parse failures and safety blocks are deterministic for the same clip and are not retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrContentBlocked),
		errors.Is(err, ErrMalformedEnvelope),
		errors.Is(err, ErrUpstreamRejected),
		errors.Is(err, ErrResponseFormat),
		errors.Is(err, ErrResponseIncomplete),
		errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConflict):
		return false
	case errors.Is(err, ErrTransport),
		errors.Is(err, ErrUpstreamTimeout),
		errors.Is(err, ErrUpstreamRateLimit),
		errors.Is(err, ErrRateLimited):
		return true
	}
	// unknown errors (db hiccups, broker timeouts) get another go
	return true
}

// ShouldRetry combines the attempt budget with IsRetryable. attempt is zero-based.
func (c RetryConfig) ShouldRetry(err error, attempt int) bool {
	if attempt >= c.MaxRetries {
		return false
	}
	return IsRetryable(err)
}

// Delay returns the wait before retry number attempt (zero-based).
func (c RetryConfig) Delay(attempt int) time.Duration {
	d := float64(c.InitialDelay)
	for i := 0; i < attempt; i++ {
		d *= c.Multiplier
		if time.Duration(d) >= c.MaxDelay {
			break
		}
	}
	delay := time.Duration(d)
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	if c.Jitter && delay > 0 {
		delay += time.Duration(rand.Int64N(int64(delay)/10 + 1))
	}
	return delay
}
