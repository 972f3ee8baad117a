package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/castmate/castmate-ai/internal/domain"
)

// actorID accepts a JSON string or number; models emit both.
type actorID string

func (a *actorID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = actorID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("acteurId: %w", err)
	}
	*a = actorID(n.String())
	return nil
}

type suggestedActorWire struct {
	ActeurID     actorID  `json:"acteurId"`
	Nom          string   `json:"nom"`
	Prenom       string   `json:"prenom"`
	MatchScore   float64  `json:"matchScore"`
	MatchReasons []string `json:"matchReasons"`
}

type chatbotWire struct {
	Answer          *string              `json:"answer"`
	SuggestedActors []suggestedActorWire `json:"suggestedActors"`
}

// ExtractSuggestions parses a chatbot response and backfills missing names
// from roster. It never fails: when no object can be decoded the reply has a
// nil answer and no suggestions, with OutcomeEmptyFallback, and the caller
// shows the raw text instead.
func ExtractSuggestions(raw string, roster domain.Roster) (domain.ChatbotReply, domain.Outcome) {
	empty := domain.ChatbotReply{SuggestedActors: []domain.SuggestedActor{}}

	recovered := RecoverJSON(raw)
	if !strings.HasPrefix(recovered, "{") || !strings.HasSuffix(recovered, "}") {
		return empty, domain.OutcomeEmptyFallback
	}
	var w chatbotWire
	if err := json.Unmarshal([]byte(recovered), &w); err != nil {
		return empty, domain.OutcomeEmptyFallback
	}

	out := domain.ChatbotReply{
		Answer:          w.Answer,
		SuggestedActors: make([]domain.SuggestedActor, 0, len(w.SuggestedActors)),
	}
	for _, s := range w.SuggestedActors {
		actor := domain.SuggestedActor{
			ActeurID:     string(s.ActeurID),
			Nom:          s.Nom,
			Prenom:       s.Prenom,
			MatchScore:   s.MatchScore,
			MatchReasons: s.MatchReasons,
		}
		if actor.MatchReasons == nil {
			actor.MatchReasons = []string{}
		}
		if roster != nil && (actor.Nom == "" || actor.Prenom == "") {
			if name, ok := roster.FindByID(actor.ActeurID); ok {
				if actor.Nom == "" {
					actor.Nom = name.Nom
				}
				if actor.Prenom == "" {
					actor.Prenom = name.Prenom
				}
			}
		}
		out.SuggestedActors = append(out.SuggestedActors, actor)
	}
	return out, domain.OutcomeDecoded
}
