package ai

import (
	"strings"

	"github.com/castmate/castmate-ai/internal/domain"
)

// ParseTrainingFeedback runs recovery, strict decoding and, for truncated
// responses, partial reconstruction. Failures are *ResponseError values
// wrapping domain.ErrResponseFormat or domain.ErrResponseIncomplete, with
// OutcomeFailed.
func ParseTrainingFeedback(raw string) (domain.TrainingFeedback, domain.Outcome, error) {
	recovered := RecoverJSON(raw)
	fb, err := DecodeFeedback(recovered)
	if err == nil {
		return fb, domain.OutcomeDecoded, nil
	}
	if !looksTruncated(err) {
		return domain.TrainingFeedback{}, domain.OutcomeFailed, newResponseError(domain.ErrResponseFormat, err, raw)
	}
	salvage := raw
	if strings.TrimSpace(recovered) == "" {
		// fences and whitespace only
		salvage = ""
	}
	fb, perr := ReconstructPartialFeedback(salvage)
	if perr != nil {
		return domain.TrainingFeedback{}, domain.OutcomeFailed, newResponseError(domain.ErrResponseIncomplete, err, raw)
	}
	return fb, domain.OutcomePartialRecovered, nil
}
