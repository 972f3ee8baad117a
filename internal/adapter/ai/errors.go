package ai

import (
	"github.com/castmate/castmate-ai/pkg/textx"
)

// PreviewLimit bounds every diagnostic excerpt carried by a ResponseError.
const PreviewLimit = 240

// ResponseError is a parse failure converted into the domain taxonomy.
// Kind is one of the domain sentinels and is what errors.Is matches.
type ResponseError struct {
	Kind    error
	Message string
	Preview string
}

func newResponseError(kind error, cause error, raw string) *ResponseError {
	msg := ""
	if cause != nil {
		msg = textx.Preview(cause.Error(), PreviewLimit)
	}
	return &ResponseError{Kind: kind, Message: msg, Preview: textx.Preview(raw, PreviewLimit)}
}

func (e *ResponseError) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Message
}

func (e *ResponseError) Unwrap() error { return e.Kind }
