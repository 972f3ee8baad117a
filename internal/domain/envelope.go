package domain

// GenerationEnvelope mirrors the generateContent response body.
// All fields are optional on the wire.
type GenerationEnvelope struct {
	Candidates     []GenerationCandidate `json:"candidates,omitempty"`
	PromptFeedback *PromptFeedback       `json:"promptFeedback,omitempty"`
	UsageMetadata  *UsageMetadata        `json:"usageMetadata,omitempty"`
	ModelVersion   string                `json:"modelVersion,omitempty"`
}

type GenerationCandidate struct {
	Content      *GenerationContent `json:"content,omitempty"`
	FinishReason string             `json:"finishReason,omitempty"`
}

type GenerationContent struct {
	Parts []GenerationPart `json:"parts,omitempty"`
	Role  string           `json:"role,omitempty"`
}

type GenerationPart struct {
	Text string `json:"text,omitempty"`
}

type PromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount,omitempty"`
	CandidatesTokenCount int `json:"candidatesTokenCount,omitempty"`
	TotalTokenCount      int `json:"totalTokenCount,omitempty"`
}
