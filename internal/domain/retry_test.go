package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"content blocked", fmt.Errorf("op=x: %w", ErrContentBlocked), false},
		{"malformed envelope", ErrMalformedEnvelope, false},
		{"upstream rejected", fmt.Errorf("op=x: %w", ErrUpstreamRejected), false},
		{"response format", ErrResponseFormat, false},
		{"response incomplete", ErrResponseIncomplete, false},
		{"not found", ErrNotFound, false},
		{"transport", fmt.Errorf("op=x: %w", ErrTransport), true},
		{"upstream timeout", ErrUpstreamTimeout, true},
		{"upstream rate limit", ErrUpstreamRateLimit, true},
		{"unknown", errors.New("connection reset"), true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestRetryConfig_ShouldRetry(t *testing.T) {
	t.Parallel()
	cfg := RetryConfig{MaxRetries: 2}
	assert.True(t, cfg.ShouldRetry(ErrTransport, 0))
	assert.True(t, cfg.ShouldRetry(ErrTransport, 1))
	assert.False(t, cfg.ShouldRetry(ErrTransport, 2))
	assert.False(t, cfg.ShouldRetry(ErrContentBlocked, 0))
}

func TestRetryConfig_Delay(t *testing.T) {
	t.Parallel()
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 5 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, cfg.Delay(0))
	assert.Equal(t, 2*time.Second, cfg.Delay(1))
	assert.Equal(t, 4*time.Second, cfg.Delay(2))
	assert.Equal(t, 5*time.Second, cfg.Delay(3))
	assert.Equal(t, 5*time.Second, cfg.Delay(10))

	cfg.Jitter = true
	d := cfg.Delay(1)
	assert.GreaterOrEqual(t, d, 2*time.Second)
	assert.LessOrEqual(t, d, 2*time.Second+200*time.Millisecond+time.Nanosecond)
}
