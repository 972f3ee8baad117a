package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorConstants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"ErrInvalidArgument", ErrInvalidArgument, "invalid argument"},
		{"ErrNotFound", ErrNotFound, "not found"},
		{"ErrConflict", ErrConflict, "conflict"},
		{"ErrRateLimited", ErrRateLimited, "rate limited"},
		{"ErrUpstreamTimeout", ErrUpstreamTimeout, "upstream timeout"},
		{"ErrUpstreamRateLimit", ErrUpstreamRateLimit, "upstream rate limit"},
		{"ErrInternal", ErrInternal, "internal error"},
		{"ErrTransport", ErrTransport, "transport error"},
		{"ErrContentBlocked", ErrContentBlocked, "content blocked"},
		{"ErrMalformedEnvelope", ErrMalformedEnvelope, "malformed envelope"},
		{"ErrResponseFormat", ErrResponseFormat, "response format error"},
		{"ErrResponseIncomplete", ErrResponseIncomplete, "response incomplete or malformed, retry with a shorter clip"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestErrorIs_Wrapped(t *testing.T) {
	t.Parallel()
	wrapped := fmt.Errorf("op=gemini.Generate: %w", ErrContentBlocked)
	assert.True(t, errors.Is(wrapped, ErrContentBlocked))
	assert.False(t, errors.Is(wrapped, ErrMalformedEnvelope))
	assert.False(t, errors.Is(ErrResponseFormat, ErrResponseIncomplete))
}
