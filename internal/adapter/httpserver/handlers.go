package httpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"github.com/castmate/castmate-ai/internal/config"
	"github.com/castmate/castmate-ai/internal/domain"
	"github.com/castmate/castmate-ai/internal/usecase"
)

// ClipIngester stores uploaded clips.
type ClipIngester interface {
	Ingest(ctx context.Context, name, mime string, data []byte) (string, error)
}

// FeedbackEnqueuer creates feedback jobs.
type FeedbackEnqueuer interface {
	Enqueue(ctx context.Context, clipID, roleContext, idemKey string) (string, error)
}

// ResultFetcher renders a job for the result endpoint.
type ResultFetcher interface {
	Fetch(ctx context.Context, id, ifNoneMatch string) (int, map[string]any, string, error)
}

// SuggestionAsker answers chatbot questions.
type SuggestionAsker interface {
	Ask(ctx context.Context, question string, candidates []domain.Candidate) (usecase.ChatbotAnswer, error)
}

// ReadinessProbe is one named dependency check for /readyz.
type ReadinessProbe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Server aggregates handlers dependencies.
type Server struct {
	Cfg      config.Config
	Clips    ClipIngester
	Feedback FeedbackEnqueuer
	Results  ResultFetcher
	Chatbot  SuggestionAsker
	Probes   []ReadinessProbe
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, clips ClipIngester, feedback FeedbackEnqueuer, results ResultFetcher, chatbot SuggestionAsker, probes ...ReadinessProbe) *Server {
	return &Server{Cfg: cfg, Clips: clips, Feedback: feedback, Results: results, Chatbot: chatbot, Probes: probes}
}

// acceptsJSON is false only when the client explicitly asks for something else.
func acceptsJSON(r *http.Request) bool {
	a := r.Header.Get("Accept")
	return a == "" || strings.Contains(a, "*/*") || strings.Contains(a, "application/json")
}

func notAcceptable(w http.ResponseWriter, r *http.Request) bool {
	if acceptsJSON(r) {
		return false
	}
	writeStatusError(w, http.StatusNotAcceptable, "INVALID_ARGUMENT", "not acceptable", map[string]any{"accept": r.Header.Get("Accept")})
	return true
}

// isBodyTooLarge detects a MaxBytesReader overrun; some multipart paths drop the wrap.
func isBodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}

// ClipUploadHandler accepts a multipart "clip" file and stores it.
func (s *Server) ClipUploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if notAcceptable(w, r) {
			return
		}
		if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
			writeError(w, r, fmt.Errorf("%w: content-type must be multipart/form-data", domain.ErrInvalidArgument), nil)
			return
		}
		maxBytes := s.Cfg.MaxClipBytes()
		// multipart framing adds a little on top of the file itself
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+(1<<20))
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			if isBodyTooLarge(err) {
				writeStatusError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "payload too large", map[string]any{"max_mb": s.Cfg.MaxClipMB})
				return
			}
			writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err), nil)
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		file, header, err := r.FormFile("clip")
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: clip file required", domain.ErrInvalidArgument), map[string]string{"field": "clip"})
			return
		}
		defer func() { _ = file.Close() }()
		if header.Size > maxBytes {
			writeStatusError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "payload too large", map[string]any{"max_mb": s.Cfg.MaxClipMB})
			return
		}
		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: clip read: %v", domain.ErrInvalidArgument, err), nil)
			return
		}

		// trust the bytes, not the client-declared Content-Type
		detected := mimetype.Detect(data).String()
		if i := strings.IndexByte(detected, ';'); i >= 0 {
			detected = detected[:i]
		}
		if !usecase.AllowedClipMIME[detected] {
			writeStatusError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "unsupported media type", map[string]any{"mime": detected, "filename": header.Filename})
			return
		}

		id, err := s.Clips.Ingest(r.Context(), header.Filename, detected, data)
		if err != nil {
			writeError(w, r, fmt.Errorf("clip ingest: %w", err), nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"clip_id": id})
	}
}

// FeedbackRequest is the body of POST /v1/feedback.
type FeedbackRequest struct {
	ClipID      string `json:"clip_id" validate:"required,uuid"`
	RoleContext string `json:"role_context" validate:"max=2000"`
}

// FeedbackEnqueueHandler creates a feedback job for an uploaded clip.
func (s *Server) FeedbackEnqueueHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if notAcceptable(w, r) {
			return
		}
		var req FeedbackRequest
		if details, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		idem := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
		if len(idem) > 128 {
			writeError(w, r, fmt.Errorf("%w: idempotency key too long", domain.ErrInvalidArgument), map[string]string{"header": "Idempotency-Key"})
			return
		}
		jobID, err := s.Feedback.Enqueue(r.Context(), req.ClipID, req.RoleContext, idem)
		if err != nil {
			writeError(w, r, fmt.Errorf("enqueue: %w", err), nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": jobID, "status": string(domain.JobQueued)})
	}
}

// FeedbackResultHandler returns job status and feedback when completed.
func (s *Server) FeedbackResultHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if notAcceptable(w, r) {
			return
		}
		id := chi.URLParam(r, "id")
		if err := ValidateJobID(id); err != nil {
			writeError(w, r, err, map[string]string{"field": "id"})
			return
		}
		status, res, etag, err := s.Results.Fetch(r.Context(), id, r.Header.Get("If-None-Match"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if etag != "" {
			w.Header().Set("ETag", etag)
		}
		w.Header().Set("Cache-Control", "no-cache")
		if status == http.StatusNotModified {
			w.WriteHeader(status)
			return
		}
		writeJSON(w, status, res)
	}
}

// ChatbotRequest is the body of POST /v1/chatbot/suggestions.
type ChatbotRequest struct {
	Question   string             `json:"question" validate:"required,max=2000"`
	Candidates []domain.Candidate `json:"candidates" validate:"max=500,dive"`
}

// ChatbotSuggestionsHandler answers a casting question over the posted roster.
func (s *Server) ChatbotSuggestionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if notAcceptable(w, r) {
			return
		}
		var req ChatbotRequest
		if details, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		ans, err := s.Chatbot.Ask(r.Context(), req.Question, req.Candidates)
		if err != nil {
			writeError(w, r, fmt.Errorf("chatbot: %w", err), nil)
			return
		}
		if ans.SuggestedActors == nil {
			ans.SuggestedActors = []domain.SuggestedActor{}
		}
		writeJSON(w, http.StatusOK, ans)
	}
}

// HealthzHandler reports liveness only; dependencies belong to /readyz.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler runs every probe with a shared deadline and answers 503 if any fails.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]usecase.ReadinessCheck, 0, len(s.Probes))
		ok := true
		for _, p := range s.Probes {
			c := usecase.ReadinessCheck{Name: p.Name, OK: true}
			if p.Check == nil {
				c.OK, c.Details = false, "not configured"
			} else if err := p.Check(ctx); err != nil {
				c.OK, c.Details = false, err.Error()
			}
			if !c.OK {
				ok = false
			}
			checks = append(checks, c)
		}
		st := http.StatusOK
		if !ok {
			st = http.StatusServiceUnavailable
			LoggerFrom(r).Warn("readiness check failed", "checks", checks)
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}
