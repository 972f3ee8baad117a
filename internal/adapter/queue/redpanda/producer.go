// Package redpanda moves feedback jobs and completion events through Redpanda (Kafka API).
//
// The producer is transactional so the worker can read with read_committed isolation.
package redpanda

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/castmate/castmate-ai/internal/adapter/observability"
	"github.com/castmate/castmate-ai/internal/domain"
)

// Producer implements domain.Queue and domain.EventPublisher.
type Producer struct {
	client *kgo.Client
	// one transaction at a time per transactional id
	txn chan struct{}
}

// NewProducer connects a transactional producer and makes sure both topics exist.
func NewProducer(ctx context.Context, brokers []string, transactionalID string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("op=redpanda.NewProducer: %w: no seed brokers", domain.ErrInvalidArgument)
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.TransactionalID(transactionalID),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1_000_000),
		kgo.WithHooks(kotelHooks()...),
	)
	if err != nil {
		return nil, fmt.Errorf("op=redpanda.NewProducer: %w", err)
	}
	for _, topic := range []string{TopicFeedbackJobs, TopicFeedbackCompleted} {
		if err := ensureTopic(ctx, client, topic, 3, 1); err != nil {
			slog.Warn("topic setup failed, assuming it exists", slog.String("topic", topic), slog.Any("error", err))
		}
	}
	return &Producer{client: client, txn: make(chan struct{}, 1)}, nil
}

// EnqueueFeedback publishes a feedback task and returns the job id as the task id.
func (p *Producer) EnqueueFeedback(ctx domain.Context, payload domain.FeedbackTaskPayload) (string, error) {
	rec, err := newFeedbackRecord(payload)
	if err != nil {
		return "", fmt.Errorf("op=redpanda.EnqueueFeedback: %w", err)
	}
	if err := p.produce(ctx, rec); err != nil {
		return "", fmt.Errorf("op=redpanda.EnqueueFeedback: %w", err)
	}
	observability.EnqueueJob("feedback")
	slog.Info("feedback task enqueued", slog.String("job_id", payload.JobID), slog.String("topic", rec.Topic))
	return payload.JobID, nil
}

// PublishFeedbackCompleted announces a completed feedback job.
func (p *Producer) PublishFeedbackCompleted(ctx domain.Context, ev domain.FeedbackCompletedEvent) error {
	rec, err := newCompletedRecord(ev)
	if err != nil {
		return fmt.Errorf("op=redpanda.PublishFeedbackCompleted: %w", err)
	}
	if err := p.produce(ctx, rec); err != nil {
		return fmt.Errorf("op=redpanda.PublishFeedbackCompleted: %w", err)
	}
	return nil
}

// produce writes one record inside its own transaction.
func (p *Producer) produce(ctx context.Context, rec *kgo.Record) error {
	select {
	case p.txn <- struct{}{}:
		defer func() { <-p.txn }()
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := p.client.BeginTransaction(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	e := kgo.AbortingFirstErrPromise(p.client)
	p.client.Produce(ctx, rec, e.Promise())
	if err := e.Err(); err != nil {
		if abortErr := p.client.EndTransaction(ctx, kgo.TryAbort); abortErr != nil {
			slog.Error("failed to abort transaction", slog.Any("error", abortErr))
		}
		return fmt.Errorf("produce: %w", err)
	}
	if err := p.client.EndTransaction(ctx, kgo.TryCommit); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Ping checks broker reachability for readiness probes.
func (p *Producer) Ping(ctx context.Context) error { return p.client.Ping(ctx) }

// Close flushes and closes the client.
func (p *Producer) Close() {
	if p.client != nil {
		p.client.Close()
	}
}

func kotelHooks() []kgo.Hook {
	tracer := kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider()))
	return kotel.NewKotel(kotel.WithTracer(tracer)).Hooks()
}
