// Package usecase contains the application services behind the HTTP API and the worker.
package usecase

import (
	"errors"
	"strings"

	"github.com/castmate/castmate-ai/internal/domain"
	"github.com/castmate/castmate-ai/pkg/textx"
)

// ReadinessCheck represents a single readiness probe result used by handlers.
type ReadinessCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Details string `json:"details,omitempty"`
}

// jobErrorLimit bounds the error text stored on a failed job.
const jobErrorLimit = 512

type failureKind struct {
	sentinel error
	code     string
	hint     string
}

// failureKinds is ordered: the first sentinel matched by errors.Is wins.
var failureKinds = []failureKind{
	{domain.ErrContentBlocked, "CONTENT_BLOCKED", ""},
	{domain.ErrMalformedEnvelope, "MALFORMED_ENVELOPE", "The analysis service returned an unexpected answer. Try again later."},
	{domain.ErrResponseIncomplete, "RESPONSE_INCOMPLETE", "Retry with a shorter clip."},
	{domain.ErrResponseFormat, "RESPONSE_FORMAT", "Retry the analysis."},
	{domain.ErrUpstreamRejected, "UPSTREAM_REJECTED", ""},
	{domain.ErrUpstreamTimeout, "UPSTREAM_TIMEOUT", "Try again in a few minutes."},
	{domain.ErrUpstreamRateLimit, "UPSTREAM_RATE_LIMIT", "Try again in a minute."},
	{domain.ErrTransport, "TRANSPORT", "Try again in a few minutes."},
	{domain.ErrNotFound, "NOT_FOUND", ""},
	{domain.ErrInvalidArgument, "INVALID_ARGUMENT", ""},
}

// ErrorCode maps an error to its stable API code.
func ErrorCode(err error) string {
	for _, k := range failureKinds {
		if errors.Is(err, k.sentinel) {
			return k.code
		}
	}
	return "INTERNAL"
}

// jobFailureMessage is the text stored on a failed job: "<CODE>: <bounded error>".
func jobFailureMessage(err error) string {
	return ErrorCode(err) + ": " + textx.Preview(err.Error(), jobErrorLimit)
}

// errorCodeFromJobError recovers the code from a stored job error message.
func errorCodeFromJobError(msg string) string {
	msg = strings.TrimSpace(msg)
	if code, _, ok := strings.Cut(msg, ":"); ok {
		for _, k := range failureKinds {
			if k.code == code {
				return code
			}
		}
	}
	s := strings.ToLower(msg)
	switch {
	case strings.Contains(s, "timeout"), strings.Contains(s, "deadline exceeded"):
		return "UPSTREAM_TIMEOUT"
	case strings.Contains(s, "rate limit"):
		return "UPSTREAM_RATE_LIMIT"
	default:
		return "INTERNAL"
	}
}

func retryHint(code string) string {
	for _, k := range failureKinds {
		if k.code == code {
			return k.hint
		}
	}
	return ""
}

func ptr(s string) *string { return &s }
