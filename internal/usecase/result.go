package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/castmate/castmate-ai/internal/domain"
	"github.com/castmate/castmate-ai/internal/observability"
)

// ResultService assembles the feedback job response, including ETag and error mapping.
type ResultService struct {
	Jobs       domain.JobRepository
	Results    domain.FeedbackRepository
	StaleAfter time.Duration
}

// NewResultService constructs a ResultService. staleAfter <= 0 disables stale marking.
func NewResultService(j domain.JobRepository, r domain.FeedbackRepository, staleAfter time.Duration) ResultService {
	return ResultService{Jobs: j, Results: r, StaleAfter: staleAfter}
}

// Fetch returns the HTTP status, body and ETag for a job. A matching
// If-None-Match yields 304 with no body.
func (s ResultService) Fetch(ctx domain.Context, id, ifNoneMatch string) (int, map[string]any, string, error) {
	lg := observability.LoggerFromContext(ctx)
	job, err := s.Jobs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return http.StatusNotFound, nil, "", fmt.Errorf("%w: job not found", domain.ErrNotFound)
		}
		return http.StatusInternalServerError, nil, "", fmt.Errorf("op=usecase.ResultService.Fetch: %w", err)
	}

	if job.Status != domain.JobCompleted {
		if s.isStale(job, time.Now().UTC()) {
			msg := fmt.Sprintf("UPSTREAM_TIMEOUT: job did not finish within %s", s.StaleAfter)
			lg.Warn("job marked as stale", slog.String("job_id", id), slog.String("status", string(job.Status)))
			if err := s.Jobs.UpdateStatus(ctx, id, domain.JobFailed, &msg); err != nil {
				lg.Error("failed to mark stale job", slog.String("job_id", id), slog.Any("error", err))
			}
			job.Status = domain.JobFailed
			job.Error = msg
		}
		m := map[string]any{"id": id, "status": string(job.Status)}
		if job.Status == domain.JobFailed {
			code := errorCodeFromJobError(job.Error)
			errObj := map[string]any{"code": code, "message": job.Error}
			if hint := retryHint(code); hint != "" {
				errObj["retry_hint"] = hint
			}
			m["error"] = errObj
		}
		return respond(m, ifNoneMatch)
	}

	rec, err := s.Results.GetByJobID(ctx, id)
	if err != nil {
		return http.StatusInternalServerError, nil, "", fmt.Errorf("op=usecase.ResultService.Fetch: %w", err)
	}
	m := map[string]any{
		"id":      id,
		"status":  string(domain.JobCompleted),
		"outcome": string(rec.Outcome),
		"result":  rec.Feedback,
	}
	return respond(m, ifNoneMatch)
}

func (s ResultService) isStale(job domain.Job, now time.Time) bool {
	if s.StaleAfter <= 0 {
		return false
	}
	switch job.Status {
	case domain.JobQueued:
		return now.Sub(job.CreatedAt) > s.StaleAfter
	case domain.JobProcessing:
		return now.Sub(job.UpdatedAt) > s.StaleAfter
	}
	return false
}

func respond(m map[string]any, ifNoneMatch string) (int, map[string]any, string, error) {
	etag := makeETag(m)
	if ifNoneMatch != "" && etag == ifNoneMatch {
		return http.StatusNotModified, nil, etag, nil
	}
	return http.StatusOK, m, etag, nil
}

func makeETag(v any) string {
	b, _ := json.Marshal(v)
	s := sha256.Sum256(b)
	return `"` + hex.EncodeToString(s[:16]) + `"`
}
