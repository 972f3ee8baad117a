package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/castmate/castmate-ai/internal/domain"
)

var (
	feedbackValidator     *validator.Validate
	feedbackValidatorOnce sync.Once
)

func getFeedbackValidator() *validator.Validate {
	feedbackValidatorOnce.Do(func() {
		feedbackValidator = validator.New()
		feedbackValidator.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return feedbackValidator
}

// Wire structs use pointers so a missing key differs from a zero value.

type emotionsWire struct {
	Score     *int     `json:"score" validate:"required"`
	Detected  []string `json:"detected" validate:"required"`
	Coherence *int     `json:"coherence" validate:"required"`
	Intensity *int     `json:"intensity" validate:"required"`
	Comment   *string  `json:"comment" validate:"required"`
}

type postureWire struct {
	Score        *int     `json:"score" validate:"required"`
	Openness     *int     `json:"openness" validate:"required"`
	Observations []string `json:"observations" validate:"required"`
	Comment      *string  `json:"comment" validate:"required"`
}

type intonationWire struct {
	Score   *int    `json:"score" validate:"required"`
	Clarity *int    `json:"clarity" validate:"required"`
	Rhythm  *int    `json:"rhythm" validate:"required"`
	Comment *string `json:"comment" validate:"required"`
}

type expressivityWire struct {
	Score   *int    `json:"score" validate:"required"`
	Comment *string `json:"comment" validate:"required"`
}

type feedbackWire struct {
	GlobalScore     *int              `json:"globalScore" validate:"required"`
	Emotions        *emotionsWire     `json:"emotions" validate:"required"`
	Posture         *postureWire      `json:"posture" validate:"required"`
	Intonation      *intonationWire   `json:"intonation" validate:"required"`
	Expressivity    *expressivityWire `json:"expressivite" validate:"required"`
	Recommendations []string          `json:"recommendations" validate:"required"`
	Strengths       []string          `json:"strengths" validate:"required"`
	Summary         *string           `json:"summary" validate:"required"`
}

// DecodeFeedback strictly decodes recovered JSON into a TrainingFeedback.
// Any missing field or type mismatch fails the whole decode; values are not clamped.
// The returned error is the raw decode error, classified by the caller.
func DecodeFeedback(recovered string) (domain.TrainingFeedback, error) {
	var w feedbackWire
	if err := json.Unmarshal([]byte(recovered), &w); err != nil {
		return domain.TrainingFeedback{}, fmt.Errorf("decode feedback: %w", err)
	}
	if err := getFeedbackValidator().Struct(&w); err != nil {
		return domain.TrainingFeedback{}, fmt.Errorf("decode feedback: %s", missingFields(err))
	}
	return domain.TrainingFeedback{
		GlobalScore: *w.GlobalScore,
		Emotions: domain.EmotionAnalysis{
			Score:     *w.Emotions.Score,
			Detected:  w.Emotions.Detected,
			Coherence: *w.Emotions.Coherence,
			Intensity: *w.Emotions.Intensity,
			Comment:   *w.Emotions.Comment,
		},
		Posture: domain.PostureAnalysis{
			Score:        *w.Posture.Score,
			Openness:     *w.Posture.Openness,
			Observations: w.Posture.Observations,
			Comment:      *w.Posture.Comment,
		},
		Intonation: domain.IntonationAnalysis{
			Score:   *w.Intonation.Score,
			Clarity: *w.Intonation.Clarity,
			Rhythm:  *w.Intonation.Rhythm,
			Comment: *w.Intonation.Comment,
		},
		Expressivity: domain.ExpressivityAnalysis{
			Score:   *w.Expressivity.Score,
			Comment: *w.Expressivity.Comment,
		},
		Recommendations: w.Recommendations,
		Strengths:       w.Strengths,
		Summary:         *w.Summary,
	}, nil
}

// missingFields renders validator errors as "missing field a.b, c".
func missingFields(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		// Namespace is "feedbackWire.emotions.score"; drop the root type
		ns := fe.Namespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		names = append(names, ns)
	}
	return "missing field " + strings.Join(names, ", ")
}

// truncationMarkers are decode error fragments that suggest a cut-off response.
var truncationMarkers = []string{
	"unexpected end of JSON input",
	"unexpected EOF",
	"unterminated",
	"end of input",
}

// looksTruncated is a loose substring heuristic over the decode error text.
func looksTruncated(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, m := range truncationMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
