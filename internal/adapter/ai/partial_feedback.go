package ai

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/castmate/castmate-ai/internal/domain"
)

const (
	// TruncatedCaveat replaces every text field of a reconstructed feedback.
	TruncatedCaveat = "Analysis incomplete: the response was truncated."
	// DefaultPartialScore is the neutral score used when a value cannot be recovered.
	DefaultPartialScore = 50
)

type scoreRecovery struct {
	field   string
	pattern *regexp.Regexp
	set     func(*domain.TrainingFeedback, int)
}

// partialRecoveries is scanned once over the untouched raw text; rows are independent.
var partialRecoveries = []scoreRecovery{
	{
		field:   "globalScore",
		pattern: regexp.MustCompile(`"globalScore"\s*:\s*(-?\d+)`),
		set:     func(f *domain.TrainingFeedback, v int) { f.GlobalScore = v },
	},
	{
		field:   "coherence",
		pattern: regexp.MustCompile(`"coherence"\s*:\s*(-?\d+)`),
		set:     func(f *domain.TrainingFeedback, v int) { f.Emotions.Coherence = v },
	},
	{
		field:   "intensity",
		pattern: regexp.MustCompile(`"intensity"\s*:\s*(-?\d+)`),
		set:     func(f *domain.TrainingFeedback, v int) { f.Emotions.Intensity = v },
	},
}

// ReconstructPartialFeedback builds a complete feedback from a truncated response.
// Recoverable scores are read from raw; everything else gets the caveat and
// neutral defaults. It fails only for empty or whitespace-only input, with
// domain.ErrResponseIncomplete.
func ReconstructPartialFeedback(raw string) (domain.TrainingFeedback, error) {
	if strings.TrimSpace(raw) == "" {
		return domain.TrainingFeedback{}, &ResponseError{Kind: domain.ErrResponseIncomplete}
	}
	fb := defaultPartialFeedback()
	for _, row := range partialRecoveries {
		m := row.pattern.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			// out of int range; keep the default
			continue
		}
		row.set(&fb, v)
	}
	return fb, nil
}

func defaultPartialFeedback() domain.TrainingFeedback {
	return domain.TrainingFeedback{
		GlobalScore: DefaultPartialScore,
		Emotions: domain.EmotionAnalysis{
			Score:     DefaultPartialScore,
			Detected:  []string{},
			Coherence: DefaultPartialScore,
			Intensity: DefaultPartialScore,
			Comment:   TruncatedCaveat,
		},
		Posture: domain.PostureAnalysis{
			Score:        DefaultPartialScore,
			Openness:     DefaultPartialScore,
			Observations: []string{},
			Comment:      TruncatedCaveat,
		},
		Intonation: domain.IntonationAnalysis{
			Score:   DefaultPartialScore,
			Clarity: DefaultPartialScore,
			Rhythm:  DefaultPartialScore,
			Comment: TruncatedCaveat,
		},
		Expressivity: domain.ExpressivityAnalysis{
			Score:   DefaultPartialScore,
			Comment: TruncatedCaveat,
		},
		Recommendations: []string{},
		Strengths:       []string{},
		Summary:         TruncatedCaveat,
	}
}
