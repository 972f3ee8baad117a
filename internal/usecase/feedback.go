package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/castmate/castmate-ai/internal/adapter/ai"
	obsmetrics "github.com/castmate/castmate-ai/internal/adapter/observability"
	"github.com/castmate/castmate-ai/internal/config"
	"github.com/castmate/castmate-ai/internal/domain"
	"github.com/castmate/castmate-ai/internal/observability"
)

// MaxRoleContextLen bounds the free-text role description sent with a clip.
const MaxRoleContextLen = 2000

// FeedbackService creates feedback jobs and, in the worker, turns clips into TrainingFeedback.
type FeedbackService struct {
	Jobs      domain.JobRepository
	Clips     domain.ClipRepository
	Results   domain.FeedbackRepository
	Queue     domain.Queue
	Events    domain.EventPublisher
	AI        domain.Generator
	Prompt    config.PromptTemplate
	MaxTokens int
}

// Enqueue creates a queued job for clipID and publishes the task.
// A known idempotency key returns the existing job instead.
func (s FeedbackService) Enqueue(ctx domain.Context, clipID, roleContext, idemKey string) (string, error) {
	clipID = strings.TrimSpace(clipID)
	if clipID == "" {
		return "", fmt.Errorf("%w: clip_id required", domain.ErrInvalidArgument)
	}
	if len(roleContext) > MaxRoleContextLen {
		return "", fmt.Errorf("%w: role_context exceeds %d bytes", domain.ErrInvalidArgument, MaxRoleContextLen)
	}
	if idemKey != "" {
		if j, err := s.Jobs.FindByIdempotencyKey(ctx, idemKey); err == nil && j.ID != "" {
			return j.ID, nil
		}
	}
	now := time.Now().UTC()
	j := domain.Job{Status: domain.JobQueued, ClipID: clipID, RoleContext: roleContext, CreatedAt: now, UpdatedAt: now}
	if idemKey != "" {
		j.IdemKey = &idemKey
	}
	jobID, err := s.Jobs.Create(ctx, j)
	if err != nil {
		// a concurrent request with the same key won the insert
		if idemKey != "" && errors.Is(err, domain.ErrConflict) {
			if existing, ferr := s.Jobs.FindByIdempotencyKey(ctx, idemKey); ferr == nil {
				return existing.ID, nil
			}
		}
		return "", fmt.Errorf("op=usecase.FeedbackService.Enqueue: %w", err)
	}
	payload := domain.FeedbackTaskPayload{JobID: jobID, ClipID: clipID, RoleContext: roleContext}
	if _, err := s.Queue.EnqueueFeedback(ctx, payload); err != nil {
		_ = s.Jobs.UpdateStatus(ctx, jobID, domain.JobFailed, ptr("INTERNAL: enqueue failed"))
		return "", fmt.Errorf("op=usecase.FeedbackService.Enqueue: %w", err)
	}
	return jobID, nil
}

// Process runs one feedback task. Non-retryable failures are recorded on the
// job before returning; retryable ones leave the job processing so the
// consumer can redeliver.
func (s FeedbackService) Process(ctx context.Context, p domain.FeedbackTaskPayload) error {
	ctx, span := otel.Tracer("usecase.feedback").Start(ctx, "FeedbackService.Process")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", p.JobID), attribute.String("clip.id", p.ClipID))
	ctx = observability.ContextWithJobID(ctx, p.JobID)

	if err := s.Jobs.UpdateStatus(ctx, p.JobID, domain.JobProcessing, nil); err != nil {
		return fmt.Errorf("op=usecase.FeedbackService.Process: %w", err)
	}
	obsmetrics.StartProcessingJob("feedback")
	err := s.process(ctx, p)
	switch {
	case err == nil:
		obsmetrics.CompleteJob("feedback")
	case domain.IsRetryable(err):
		span.RecordError(err)
		obsmetrics.RequeueJob("feedback")
	default:
		span.RecordError(err)
		obsmetrics.FailJob("feedback")
	}
	return err
}

func (s FeedbackService) process(ctx context.Context, p domain.FeedbackTaskPayload) error {
	lg := observability.LoggerFromContext(ctx)
	rec, err := s.analyze(ctx, p)
	if err != nil {
		s.logFailure(lg, err)
		if !domain.IsRetryable(err) {
			s.fail(ctx, p.JobID, err)
		}
		return err
	}

	if err := s.Results.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("op=usecase.FeedbackService.Process: %w", err)
	}
	if err := s.Jobs.UpdateStatus(ctx, p.JobID, domain.JobCompleted, nil); err != nil {
		return fmt.Errorf("op=usecase.FeedbackService.Process: %w", err)
	}
	obsmetrics.ObserveFeedback(string(rec.Outcome), rec.Feedback.GlobalScore)
	lg.Info("feedback completed", slog.String("outcome", string(rec.Outcome)), slog.Int("global_score", rec.Feedback.GlobalScore))

	if s.Events != nil {
		ev := domain.FeedbackCompletedEvent{
			JobID:       p.JobID,
			ClipID:      p.ClipID,
			GlobalScore: rec.Feedback.GlobalScore,
			Outcome:     rec.Outcome,
			CompletedAt: time.Now().UTC(),
		}
		if err := s.Events.PublishFeedbackCompleted(ctx, ev); err != nil {
			lg.Warn("completion event not published", slog.Any("error", err))
		}
	}
	return nil
}

func (s FeedbackService) analyze(ctx context.Context, p domain.FeedbackTaskPayload) (domain.FeedbackRecord, error) {
	clip, err := s.Clips.Get(ctx, p.ClipID)
	if err != nil {
		return domain.FeedbackRecord{}, fmt.Errorf("load clip: %w", err)
	}
	roleContext := strings.TrimSpace(p.RoleContext)
	if roleContext != "" {
		roleContext = "Contexte du rôle : " + roleContext
	}
	env, err := s.AI.Generate(ctx, domain.GenerateRequest{
		SystemPrompt: s.Prompt.System,
		Prompt:       s.Prompt.Render(map[string]string{"role_context": roleContext}),
		Media:        &domain.Media{MIME: clip.MIME, Data: clip.Data},
		MaxTokens:    s.MaxTokens,
		JSONOutput:   true,
	})
	if err != nil {
		return domain.FeedbackRecord{}, err
	}
	text, err := ai.ExtractText(*env)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedEnvelope) {
			obsmetrics.ObserveMalformedEnvelope()
		}
		return domain.FeedbackRecord{}, err
	}
	fb, outcome, err := ai.ParseTrainingFeedback(text)
	obsmetrics.ObserveParseOutcome("feedback", string(outcome))
	if err != nil {
		return domain.FeedbackRecord{}, err
	}
	return domain.FeedbackRecord{JobID: p.JobID, Feedback: fb, Outcome: outcome, CreatedAt: time.Now().UTC()}, nil
}

func (s FeedbackService) logFailure(lg *slog.Logger, err error) {
	attrs := []any{slog.String("error_code", ErrorCode(err)), slog.Any("error", err)}
	var re *ai.ResponseError
	if errors.As(err, &re) && re.Preview != "" {
		attrs = append(attrs, slog.String("response_preview", re.Preview))
	}
	if errors.Is(err, domain.ErrMalformedEnvelope) {
		lg.Error("generation envelope without usable text", append(attrs, slog.Bool("contract_drift", true))...)
		return
	}
	lg.Warn("feedback analysis failed", attrs...)
}

// MarkFailed records a terminal failure after the consumer gave up retrying.
func (s FeedbackService) MarkFailed(ctx context.Context, jobID string, cause error) {
	s.fail(ctx, jobID, cause)
	obsmetrics.AbandonJob("feedback")
}

func (s FeedbackService) fail(ctx context.Context, jobID string, cause error) {
	if err := s.Jobs.UpdateStatus(ctx, jobID, domain.JobFailed, ptr(jobFailureMessage(cause))); err != nil {
		observability.LoggerFromContext(ctx).Error("failed to mark job failed", slog.String("job_id", jobID), slog.Any("error", err))
	}
}
