// Package stub is a deterministic domain.Generator for local runs without a Gemini key.
package stub

import (
	"context"
	"time"

	"github.com/castmate/castmate-ai/internal/domain"
)

const feedbackJSON = `{"globalScore":72,
"emotions":{"score":70,"detected":["tristesse","colère"],"coherence":74,"intensity":66,"comment":"Émotions lisibles, transitions un peu rapides."},
"posture":{"score":68,"openness":60,"observations":["épaules tendues"],"comment":"Ancrage correct."},
"intonation":{"score":75,"clarity":80,"rhythm":70,"comment":"Diction claire."},
"expressivite":{"score":73,"comment":"Regard expressif."},
"recommendations":["Marquer davantage les silences"],"strengths":["Présence"],"summary":"Prise solide, à affiner."}`

const chatbotJSON = `{"answer":"Voici les profils les plus proches.","suggestedActors":[]}`

// Client returns canned generateContent envelopes after a short delay.
type Client struct {
	Latency time.Duration
}

// New returns a Client with a small simulated latency.
func New() *Client { return &Client{Latency: 50 * time.Millisecond} }

// Generate answers with feedback JSON for media prompts and a chatbot reply otherwise.
func (c *Client) Generate(ctx context.Context, req domain.GenerateRequest) (*domain.GenerationEnvelope, error) {
	select {
	case <-time.After(c.Latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	text := chatbotJSON
	if req.Media != nil {
		text = feedbackJSON
	}
	return &domain.GenerationEnvelope{
		Candidates: []domain.GenerationCandidate{{
			Content:      &domain.GenerationContent{Role: "model", Parts: []domain.GenerationPart{{Text: text}}},
			FinishReason: "STOP",
		}},
		ModelVersion: "stub",
	}, nil
}
