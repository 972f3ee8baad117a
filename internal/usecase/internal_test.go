package usecase

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/castmate/castmate-ai/internal/adapter/ai"
	"github.com/castmate/castmate-ai/internal/domain"
)

func TestErrorCode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("x: %w", domain.ErrContentBlocked), "CONTENT_BLOCKED"},
		{&ai.ResponseError{Kind: domain.ErrResponseIncomplete}, "RESPONSE_INCOMPLETE"},
		{&ai.ResponseError{Kind: domain.ErrResponseFormat, Message: "missing field emotions.score"}, "RESPONSE_FORMAT"},
		{fmt.Errorf("%w: %w", domain.ErrUpstreamTimeout, fmt.Errorf("deadline")), "UPSTREAM_TIMEOUT"},
		{domain.ErrTransport, "TRANSPORT"},
		{fmt.Errorf("%w: %w", domain.ErrUpstreamRejected, fmt.Errorf("status 400")), "UPSTREAM_REJECTED"},
		{assert.AnError, "INTERNAL"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorCode(tt.err), tt.err.Error())
	}
}

func TestErrorCodeFromJobError(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"MALFORMED_ENVELOPE: malformed envelope":   "MALFORMED_ENVELOPE",
		"UPSTREAM_RATE_LIMIT: upstream rate limit": "UPSTREAM_RATE_LIMIT",
		"UPSTREAM_REJECTED: generateContent 400":   "UPSTREAM_REJECTED",
		"timeout: job exceeded 2 minutes":          "UPSTREAM_TIMEOUT",
		"BOGUS: rate limit hit":                    "UPSTREAM_RATE_LIMIT",
		"":                                         "INTERNAL",
		"enqueue failed":                           "INTERNAL",
	}
	for msg, want := range tests {
		assert.Equal(t, want, errorCodeFromJobError(msg), msg)
	}
}

func TestJobFailureMessage_Bounded(t *testing.T) {
	t.Parallel()
	long := make([]byte, 4*jobErrorLimit)
	for i := range long {
		long[i] = 'x'
	}
	msg := jobFailureMessage(fmt.Errorf("%w: %s", domain.ErrResponseFormat, long))
	assert.True(t, len(msg) < jobErrorLimit+64)
	assert.Equal(t, "RESPONSE_FORMAT", errorCodeFromJobError(msg))
}

func TestRetryHint_UpstreamRejectedHasNone(t *testing.T) {
	t.Parallel()
	assert.Empty(t, retryHint("UPSTREAM_REJECTED"))
	assert.NotEmpty(t, retryHint("TRANSPORT"))
}
