package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrRateLimited       = errors.New("rate limited")
	ErrUpstreamTimeout   = errors.New("upstream timeout")
	ErrUpstreamRateLimit = errors.New("upstream rate limit")
	ErrInternal          = errors.New("internal error")

	// ErrTransport is a failed call to the generation service. Forwarded, never originated by the parser.
	ErrTransport = errors.New("transport error")
	// ErrUpstreamRejected means the generation service refused the request itself (4xx other than 429).
	// Sending the same request again gets the same answer.
	ErrUpstreamRejected = errors.New("upstream rejected request")
	// ErrContentBlocked means the generation service withheld output (safety filter).
	ErrContentBlocked = errors.New("content blocked")
	// ErrMalformedEnvelope means a success response had no usable text; the service contract drifted.
	ErrMalformedEnvelope = errors.New("malformed envelope")
	// ErrResponseFormat means the generated text held no decodable feedback object.
	ErrResponseFormat = errors.New("response format error")
	// ErrResponseIncomplete means a truncated response could not be reconstructed at all.
	ErrResponseIncomplete = errors.New("response incomplete or malformed, retry with a shorter clip")
)

// Clip is an uploaded rehearsal video awaiting feedback.
// Invariants: MIME is an allowed video type; Size == len(Data) and Size <= max.
type Clip struct {
	ID        string
	Filename  string
	MIME      string
	Size      int64
	Data      []byte
	CreatedAt time.Time
}

type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

type Job struct {
	ID          string
	Status      JobStatus
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ClipID      string
	RoleContext string
	IdemKey     *string
}

// Outcome names the terminal state of a parse.
type Outcome string

const (
	OutcomeDecoded          Outcome = "decoded"
	OutcomePartialRecovered Outcome = "partial_recovered"
	OutcomeEmptyFallback    Outcome = "empty_fallback"
	OutcomeFailed           Outcome = "failed"
)

// EmotionAnalysis scores how convincingly emotions were played.
type EmotionAnalysis struct {
	Score     int      `json:"score"`
	Detected  []string `json:"detected"`
	Coherence int      `json:"coherence"`
	Intensity int      `json:"intensity"`
	Comment   string   `json:"comment"`
}

// PostureAnalysis scores body language.
type PostureAnalysis struct {
	Score        int      `json:"score"`
	Openness     int      `json:"openness"`
	Observations []string `json:"observations"`
	Comment      string   `json:"comment"`
}

// IntonationAnalysis scores the voice.
type IntonationAnalysis struct {
	Score   int    `json:"score"`
	Clarity int    `json:"clarity"`
	Rhythm  int    `json:"rhythm"`
	Comment string `json:"comment"`
}

// ExpressivityAnalysis scores facial expressivity.
type ExpressivityAnalysis struct {
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

// TrainingFeedback is the coaching result for one clip. Scores are 0-100.
type TrainingFeedback struct {
	GlobalScore     int                  `json:"globalScore"`
	Emotions        EmotionAnalysis      `json:"emotions"`
	Posture         PostureAnalysis      `json:"posture"`
	Intonation      IntonationAnalysis   `json:"intonation"`
	Expressivity    ExpressivityAnalysis `json:"expressivite"`
	Recommendations []string             `json:"recommendations"`
	Strengths       []string             `json:"strengths"`
	Summary         string               `json:"summary"`
}

// FeedbackRecord is a stored TrainingFeedback with the outcome it came from.
type FeedbackRecord struct {
	JobID     string
	Feedback  TrainingFeedback
	Outcome   Outcome
	CreatedAt time.Time
}

// ActorName holds optional display names for an actor.
type ActorName struct {
	Nom    string `json:"nom,omitempty"`
	Prenom string `json:"prenom,omitempty"`
}

// Candidate is one entry of the roster a talent agency sends with a chatbot query.
type Candidate struct {
	ActeurID string `json:"acteurId" validate:"required,max=64"`
	Nom      string `json:"nom,omitempty" validate:"max=120"`
	Prenom   string `json:"prenom,omitempty" validate:"max=120"`
	Profile  string `json:"profile,omitempty" validate:"max=2000"`
}

// SuggestedActor is one ranked match returned by the chatbot.
// MatchScore is nominally 0.0-1.0 but not validated.
type SuggestedActor struct {
	ActeurID     string   `json:"acteurId"`
	Nom          string   `json:"nom,omitempty"`
	Prenom       string   `json:"prenom,omitempty"`
	MatchScore   float64  `json:"matchScore"`
	MatchReasons []string `json:"matchReasons"`
}

// ChatbotReply is the parsed chatbot response. Answer is nil on the empty fallback.
type ChatbotReply struct {
	Answer          *string          `json:"answer"`
	SuggestedActors []SuggestedActor `json:"suggestedActors"`
}

// Repositories (ports)

type ClipRepository interface {
	Create(ctx Context, c Clip) (string, error)
	Get(ctx Context, id string) (Clip, error)
}

type JobRepository interface {
	Create(ctx Context, j Job) (string, error)
	UpdateStatus(ctx Context, id string, status JobStatus, errMsg *string) error
	Get(ctx Context, id string) (Job, error)
	FindByIdempotencyKey(ctx Context, key string) (Job, error)
	// ListStale returns queued or processing jobs not updated since before, oldest first.
	ListStale(ctx Context, before time.Time, limit int) ([]Job, error)
}

type FeedbackRepository interface {
	Upsert(ctx Context, r FeedbackRecord) error
	GetByJobID(ctx Context, jobID string) (FeedbackRecord, error)
}

// Roster is a read-only lookup over the candidates of one chatbot query.
// It may be empty or incomplete.
type Roster interface {
	FindByID(id string) (ActorName, bool)
}

// Queue (port)

type Queue interface {
	EnqueueFeedback(ctx Context, payload FeedbackTaskPayload) (string, error)
}

// EventPublisher announces completed feedback to downstream consumers.
type EventPublisher interface {
	PublishFeedbackCompleted(ctx Context, ev FeedbackCompletedEvent) error
}

// Generator (port) is the generative-AI client.
// Errors wrap ErrTransport, ErrUpstreamTimeout or ErrUpstreamRateLimit.
type Generator interface {
	Generate(ctx Context, req GenerateRequest) (*GenerationEnvelope, error)
}

// Media is inline binary content sent alongside a prompt.
type Media struct {
	MIME string
	Data []byte
}

// GenerateRequest is one prompt (and optional media) for the generator.
type GenerateRequest struct {
	SystemPrompt string
	Prompt       string
	Media        *Media
	MaxTokens    int
	// JSONOutput asks the model for application/json output.
	JSONOutput bool
}

// FeedbackTaskPayload

type FeedbackTaskPayload struct {
	JobID       string `json:"job_id"`
	ClipID      string `json:"clip_id"`
	RoleContext string `json:"role_context,omitempty"`
}

// FeedbackCompletedEvent is emitted once a job reaches completed.
type FeedbackCompletedEvent struct {
	JobID       string    `json:"job_id"`
	ClipID      string    `json:"clip_id"`
	GlobalScore int       `json:"global_score"`
	Outcome     Outcome   `json:"outcome"`
	CompletedAt time.Time `json:"completed_at"`
}

// Context is an alias to context.Context used across ports.
type Context = context.Context
