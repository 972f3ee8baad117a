package redpanda

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/castmate/castmate-ai/internal/domain"
	"github.com/castmate/castmate-ai/internal/observability"
)

// FeedbackHandler processes one feedback task.
// Process records a failed job itself for non-retryable errors; MarkFailed is
// called once retries for a retryable error are used up.
type FeedbackHandler interface {
	Process(ctx context.Context, payload domain.FeedbackTaskPayload) error
	MarkFailed(ctx context.Context, jobID string, cause error)
}

// Consumer reads feedback tasks with a fixed pool of workers.
type Consumer struct {
	client  *kgo.Client
	handler FeedbackHandler
	retry   domain.RetryConfig
	workers int
}

// NewConsumer joins groupID on the feedback jobs topic.
func NewConsumer(brokers []string, groupID string, handler FeedbackHandler, retry domain.RetryConfig, workers int) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("op=redpanda.NewConsumer: %w: no seed brokers", domain.ErrInvalidArgument)
	}
	if groupID == "" {
		return nil, fmt.Errorf("op=redpanda.NewConsumer: %w: missing group id", domain.ErrInvalidArgument)
	}
	if workers <= 0 {
		workers = 1
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(TopicFeedbackJobs),
		kgo.FetchIsolationLevel(kgo.ReadCommitted()),
		kgo.RequireStableFetchOffsets(),
		kgo.SessionTimeout(30*time.Second),
		kgo.HeartbeatInterval(3*time.Second),
		kgo.FetchMaxWait(5*time.Second),
		kgo.AutoCommitMarks(),
		kgo.AutoCommitInterval(time.Second),
		kgo.WithHooks(kotelHooks()...),
	)
	if err != nil {
		return nil, fmt.Errorf("op=redpanda.NewConsumer: %w", err)
	}
	return newConsumer(client, handler, retry, workers), nil
}

func newConsumer(client *kgo.Client, handler FeedbackHandler, retry domain.RetryConfig, workers int) *Consumer {
	return &Consumer{client: client, handler: handler, retry: retry, workers: workers}
}

// Start polls until ctx is cancelled, then waits for in-flight records.
func (c *Consumer) Start(ctx context.Context) error {
	records := make(chan *kgo.Record, c.workers)
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range records {
				if err := c.processRecord(ctx, rec); err != nil && ctx.Err() != nil {
					// interrupted by shutdown: leave uncommitted for redelivery
					continue
				}
				c.client.MarkCommitRecords(rec)
			}
		}()
	}
	defer func() {
		close(records)
		wg.Wait()
	}()

	slog.Info("feedback consumer started", slog.String("topic", TopicFeedbackJobs), slog.Int("workers", c.workers))
	for {
		fetches := c.client.PollRecords(ctx, c.workers*2)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return ctx.Err()
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			slog.Error("fetch error", slog.String("topic", topic), slog.Int("partition", int(partition)), slog.Any("error", err))
		})
		fetches.EachRecord(func(rec *kgo.Record) {
			select {
			case records <- rec:
			case <-ctx.Done():
			}
		})
	}
}

// processRecord runs the handler, retrying retryable failures per the retry config.
// A record that cannot be decoded is logged and skipped.
func (c *Consumer) processRecord(ctx context.Context, rec *kgo.Record) error {
	ctx, span := otel.Tracer("queue.consumer").Start(ctx, "feedback.ProcessRecord")
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.destination", rec.Topic),
		attribute.Int64("messaging.kafka.offset", rec.Offset),
	)

	payload, err := decodeFeedbackRecord(rec)
	if err != nil {
		slog.Error("dropping undecodable feedback task", slog.Int64("offset", rec.Offset), slog.Any("error", err))
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	ctx = observability.ContextWithJobID(ctx, payload.JobID)
	lg := observability.LoggerFromContext(ctx)

	for attempt := 0; ; attempt++ {
		err = c.handler.Process(ctx, payload)
		if err == nil {
			return nil
		}
		if !c.retry.ShouldRetry(err, attempt) {
			break
		}
		delay := c.retry.Delay(attempt)
		lg.Warn("feedback task failed, retrying", slog.Int("attempt", attempt+1), slog.Duration("delay", delay), slog.Any("error", err))
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	span.SetStatus(codes.Error, err.Error())
	if domain.IsRetryable(err) {
		c.handler.MarkFailed(ctx, payload.JobID, err)
	}
	lg.Error("feedback task failed", slog.Any("error", err))
	return err
}

// Ping checks broker reachability.
func (c *Consumer) Ping(ctx context.Context) error { return c.client.Ping(ctx) }

// Close leaves the group and closes the client.
func (c *Consumer) Close() {
	if c.client != nil {
		c.client.Close()
	}
}
