package redpanda

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/castmate/castmate-ai/internal/domain"
)

type handlerStub struct {
	mu      sync.Mutex
	errs    []error
	calls   int
	failed  []string
	lastErr error
}

func (h *handlerStub) Process(_ context.Context, _ domain.FeedbackTaskPayload) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var err error
	if h.calls < len(h.errs) {
		err = h.errs[h.calls]
	}
	h.calls++
	return err
}

func (h *handlerStub) MarkFailed(_ context.Context, jobID string, cause error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failed = append(h.failed, jobID)
	h.lastErr = cause
}

func testRetry() domain.RetryConfig {
	return domain.RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func taskRecord() *kgo.Record {
	return &kgo.Record{Topic: TopicFeedbackJobs, Value: []byte(`{"job_id":"job-1","clip_id":"clip-1"}`)}
}

func TestProcessRecord_Success(t *testing.T) {
	t.Parallel()
	h := &handlerStub{}
	c := newConsumer(nil, h, testRetry(), 1)
	require.NoError(t, c.processRecord(context.Background(), taskRecord()))
	assert.Equal(t, 1, h.calls)
	assert.Empty(t, h.failed)
}

func TestProcessRecord_RetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()
	h := &handlerStub{errs: []error{fmt.Errorf("gemini: %w", domain.ErrTransport)}}
	c := newConsumer(nil, h, testRetry(), 1)
	require.NoError(t, c.processRecord(context.Background(), taskRecord()))
	assert.Equal(t, 2, h.calls)
	assert.Empty(t, h.failed)
}

func TestProcessRecord_RetriesExhaustedMarksFailed(t *testing.T) {
	t.Parallel()
	transient := fmt.Errorf("gemini: %w", domain.ErrUpstreamTimeout)
	h := &handlerStub{errs: []error{transient, transient, transient}}
	c := newConsumer(nil, h, testRetry(), 1)
	err := c.processRecord(context.Background(), taskRecord())
	require.ErrorIs(t, err, domain.ErrUpstreamTimeout)
	assert.Equal(t, 3, h.calls)
	assert.Equal(t, []string{"job-1"}, h.failed)
	assert.ErrorIs(t, h.lastErr, domain.ErrUpstreamTimeout)
}

func TestProcessRecord_TerminalErrorNotRetried(t *testing.T) {
	t.Parallel()
	h := &handlerStub{errs: []error{fmt.Errorf("parse: %w", domain.ErrContentBlocked)}}
	c := newConsumer(nil, h, testRetry(), 1)
	err := c.processRecord(context.Background(), taskRecord())
	require.ErrorIs(t, err, domain.ErrContentBlocked)
	assert.Equal(t, 1, h.calls)
	assert.Empty(t, h.failed, "handler already recorded the terminal failure")
}

func TestProcessRecord_BadPayload(t *testing.T) {
	t.Parallel()
	h := &handlerStub{}
	c := newConsumer(nil, h, testRetry(), 1)
	err := c.processRecord(context.Background(), &kgo.Record{Value: []byte(`{`)})
	require.Error(t, err)
	assert.Zero(t, h.calls)
}

func TestProcessRecord_CancelledWhileWaiting(t *testing.T) {
	t.Parallel()
	h := &handlerStub{errs: []error{domain.ErrTransport, domain.ErrTransport}}
	retry := testRetry()
	retry.InitialDelay = time.Hour
	retry.MaxDelay = time.Hour
	c := newConsumer(nil, h, retry, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := c.processRecord(ctx, taskRecord())
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.failed)
}

func TestNewConsumer_Validation(t *testing.T) {
	t.Parallel()
	_, err := NewConsumer(nil, "g", &handlerStub{}, testRetry(), 1)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = NewConsumer([]string{"localhost:9092"}, "", &handlerStub{}, testRetry(), 1)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestNewProducer_NoBrokers(t *testing.T) {
	t.Parallel()
	_, err := NewProducer(context.Background(), nil, "tx")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}
