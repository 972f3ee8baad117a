package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/castmate/castmate-ai/internal/adapter/ai"
	"github.com/castmate/castmate-ai/internal/adapter/ai/tokencount"
	obsmetrics "github.com/castmate/castmate-ai/internal/adapter/observability"
	"github.com/castmate/castmate-ai/internal/config"
	"github.com/castmate/castmate-ai/internal/domain"
	"github.com/castmate/castmate-ai/internal/observability"
	"github.com/castmate/castmate-ai/pkg/textx"
)

// MaxQuestionLen bounds the agency question.
const MaxQuestionLen = 2000

// ChatbotAnswer is what the suggestions endpoint returns.
// Degraded means the model answer could not be parsed and Answer holds its raw text.
type ChatbotAnswer struct {
	Answer          string                  `json:"answer"`
	SuggestedActors []domain.SuggestedActor `json:"suggestedActors"`
	Degraded        bool                    `json:"degraded"`
}

// ChatbotService answers casting questions over a roster of candidates.
type ChatbotService struct {
	AI          domain.Generator
	Prompt      config.PromptTemplate
	Counter     *tokencount.Counter
	TokenBudget int
	MaxTokens   int
}

// Ask sends the question and as many candidates as fit the prompt budget,
// then parses the suggestions. Names missing from the reply are filled from
// the full candidate list.
func (s ChatbotService) Ask(ctx domain.Context, question string, candidates []domain.Candidate) (ChatbotAnswer, error) {
	question = textx.SanitizeText(question)
	if question == "" {
		return ChatbotAnswer{}, fmt.Errorf("%w: question required", domain.ErrInvalidArgument)
	}
	if len(question) > MaxQuestionLen {
		return ChatbotAnswer{}, fmt.Errorf("%w: question exceeds %d bytes", domain.ErrInvalidArgument, MaxQuestionLen)
	}
	lg := observability.LoggerFromContext(ctx)

	lines := make([]string, 0, len(candidates))
	for _, c := range candidates {
		b, err := json.Marshal(c)
		if err != nil {
			return ChatbotAnswer{}, fmt.Errorf("op=usecase.ChatbotService.Ask: %w", err)
		}
		lines = append(lines, string(b))
	}
	vars := map[string]string{"question": question, "candidates": "[]"}
	fixed := s.Prompt.System + s.Prompt.Render(vars)
	n := len(lines)
	if s.Counter != nil && s.TokenBudget > 0 {
		n = s.Counter.FitToBudget(fixed, lines, s.TokenBudget)
	}
	if n < len(lines) {
		lg.Warn("candidate roster trimmed to token budget", slog.Int("kept", n), slog.Int("total", len(lines)))
	}
	vars["candidates"] = "[\n" + strings.Join(lines[:n], ",\n") + "\n]"

	env, err := s.AI.Generate(ctx, domain.GenerateRequest{
		SystemPrompt: s.Prompt.System,
		Prompt:       s.Prompt.Render(vars),
		MaxTokens:    s.MaxTokens,
		JSONOutput:   true,
	})
	var text string
	if err == nil {
		text, err = ai.ExtractText(*env)
	}
	if errors.Is(err, domain.ErrMalformedEnvelope) {
		// no text to show; the reply degrades like an unparseable one
		lg.Error("chatbot envelope without usable text", slog.Any("error", err), slog.Bool("contract_drift", true))
		obsmetrics.ObserveMalformedEnvelope()
		obsmetrics.ObserveParseOutcome("chatbot", string(domain.OutcomeEmptyFallback))
		return ChatbotAnswer{SuggestedActors: []domain.SuggestedActor{}, Degraded: true}, nil
	}
	if err != nil {
		return ChatbotAnswer{}, fmt.Errorf("op=usecase.ChatbotService.Ask: %w", err)
	}

	reply, outcome := ai.ExtractSuggestions(text, domain.NewSliceRoster(candidates))
	obsmetrics.ObserveParseOutcome("chatbot", string(outcome))
	if outcome == domain.OutcomeEmptyFallback {
		lg.Warn("chatbot reply not parseable, returning raw text", slog.String("response_preview", textx.Preview(text, ai.PreviewLimit)))
		return ChatbotAnswer{Answer: strings.TrimSpace(text), SuggestedActors: reply.SuggestedActors, Degraded: true}, nil
	}
	out := ChatbotAnswer{SuggestedActors: reply.SuggestedActors}
	if reply.Answer != nil {
		out.Answer = *reply.Answer
	}
	return out, nil
}
