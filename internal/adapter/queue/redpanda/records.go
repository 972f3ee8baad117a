package redpanda

import (
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/castmate/castmate-ai/internal/domain"
)

const (
	// TopicFeedbackJobs carries FeedbackTaskPayload records for the worker.
	TopicFeedbackJobs = "training-feedback-jobs"
	// TopicFeedbackCompleted carries FeedbackCompletedEvent records for downstream consumers.
	TopicFeedbackCompleted = "training-feedback-completed"
)

func newFeedbackRecord(payload domain.FeedbackTaskPayload) (*kgo.Record, error) {
	if payload.JobID == "" || payload.ClipID == "" {
		return nil, fmt.Errorf("%w: job_id and clip_id required", domain.ErrInvalidArgument)
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &kgo.Record{
		Topic: TopicFeedbackJobs,
		// job id as key keeps redeliveries of one job on one partition
		Key:   []byte(payload.JobID),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "job_id", Value: []byte(payload.JobID)},
			{Key: "clip_id", Value: []byte(payload.ClipID)},
		},
	}, nil
}

func newCompletedRecord(ev domain.FeedbackCompletedEvent) (*kgo.Record, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return &kgo.Record{
		Topic: TopicFeedbackCompleted,
		Key:   []byte(ev.JobID),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "job_id", Value: []byte(ev.JobID)},
			{Key: "outcome", Value: []byte(ev.Outcome)},
		},
	}, nil
}

func decodeFeedbackRecord(rec *kgo.Record) (domain.FeedbackTaskPayload, error) {
	var p domain.FeedbackTaskPayload
	if err := json.Unmarshal(rec.Value, &p); err != nil {
		return p, fmt.Errorf("unmarshal payload: %w", err)
	}
	if p.JobID == "" {
		for _, h := range rec.Headers {
			if h.Key == "job_id" {
				p.JobID = string(h.Value)
			}
		}
	}
	if p.JobID == "" || p.ClipID == "" {
		return p, fmt.Errorf("%w: payload without job_id or clip_id", domain.ErrInvalidArgument)
	}
	return p, nil
}
