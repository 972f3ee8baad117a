package ai

import (
	"fmt"

	"github.com/castmate/castmate-ai/internal/domain"
)

// blockedFinishReasons are finish reasons where the service withheld output.
var blockedFinishReasons = map[string]struct{}{
	"SAFETY":             {},
	"PROHIBITED_CONTENT": {},
	"BLOCKLIST":          {},
	"SPII":               {},
	"IMAGE_SAFETY":       {},
}

// IsBlockedFinishReason reports whether reason means the output was filtered.
func IsBlockedFinishReason(reason string) bool {
	_, ok := blockedFinishReasons[reason]
	return ok
}

// ExtractText returns the first non-empty text part of the first candidate.
// A missing candidate or a safety finish reason is domain.ErrContentBlocked;
// a candidate without any text is domain.ErrMalformedEnvelope.
func ExtractText(env domain.GenerationEnvelope) (string, error) {
	if len(env.Candidates) == 0 {
		reason := "no candidates"
		if env.PromptFeedback != nil && env.PromptFeedback.BlockReason != "" {
			reason = "prompt blocked: " + env.PromptFeedback.BlockReason
		}
		return "", &ResponseError{Kind: domain.ErrContentBlocked, Message: reason}
	}
	cand := env.Candidates[0]
	if IsBlockedFinishReason(cand.FinishReason) {
		return "", &ResponseError{Kind: domain.ErrContentBlocked, Message: "finish reason " + cand.FinishReason}
	}
	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			if p.Text != "" {
				return p.Text, nil
			}
		}
	}
	return "", &ResponseError{
		Kind:    domain.ErrMalformedEnvelope,
		Message: fmt.Sprintf("no text part (finish reason %q)", cand.FinishReason),
	}
}
