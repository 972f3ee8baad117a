package usecase_test

import (
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/castmate/castmate-ai/internal/domain"
)

type jobRepoMock struct{ mock.Mock }

func (m *jobRepoMock) Create(ctx domain.Context, j domain.Job) (string, error) {
	args := m.Called(ctx, j)
	return args.String(0), args.Error(1)
}

func (m *jobRepoMock) UpdateStatus(ctx domain.Context, id string, status domain.JobStatus, errMsg *string) error {
	return m.Called(ctx, id, status, errMsg).Error(0)
}

func (m *jobRepoMock) Get(ctx domain.Context, id string) (domain.Job, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Job), args.Error(1)
}

func (m *jobRepoMock) FindByIdempotencyKey(ctx domain.Context, key string) (domain.Job, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(domain.Job), args.Error(1)
}

func (m *jobRepoMock) ListStale(ctx domain.Context, before time.Time, limit int) ([]domain.Job, error) {
	args := m.Called(ctx, before, limit)
	return args.Get(0).([]domain.Job), args.Error(1)
}

type clipRepoMock struct{ mock.Mock }

func (m *clipRepoMock) Create(ctx domain.Context, c domain.Clip) (string, error) {
	args := m.Called(ctx, c)
	return args.String(0), args.Error(1)
}

func (m *clipRepoMock) Get(ctx domain.Context, id string) (domain.Clip, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Clip), args.Error(1)
}

type feedbackRepoMock struct{ mock.Mock }

func (m *feedbackRepoMock) Upsert(ctx domain.Context, r domain.FeedbackRecord) error {
	return m.Called(ctx, r).Error(0)
}

func (m *feedbackRepoMock) GetByJobID(ctx domain.Context, jobID string) (domain.FeedbackRecord, error) {
	args := m.Called(ctx, jobID)
	return args.Get(0).(domain.FeedbackRecord), args.Error(1)
}

type queueMock struct{ mock.Mock }

func (m *queueMock) EnqueueFeedback(ctx domain.Context, p domain.FeedbackTaskPayload) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

type publisherMock struct{ mock.Mock }

func (m *publisherMock) PublishFeedbackCompleted(ctx domain.Context, ev domain.FeedbackCompletedEvent) error {
	return m.Called(ctx, ev).Error(0)
}

type generatorMock struct{ mock.Mock }

func (m *generatorMock) Generate(ctx domain.Context, req domain.GenerateRequest) (*domain.GenerationEnvelope, error) {
	args := m.Called(ctx, req)
	env, _ := args.Get(0).(*domain.GenerationEnvelope)
	return env, args.Error(1)
}

func textEnvelope(text string) *domain.GenerationEnvelope {
	return &domain.GenerationEnvelope{Candidates: []domain.GenerationCandidate{{
		Content:      &domain.GenerationContent{Parts: []domain.GenerationPart{{Text: text}}},
		FinishReason: "STOP",
	}}}
}

const validFeedbackJSON = `{"globalScore":75,
"emotions":{"score":70,"detected":["joie"],"coherence":80,"intensity":60,"comment":"ok"},
"posture":{"score":65,"openness":70,"observations":["droit"],"comment":"ok"},
"intonation":{"score":72,"clarity":75,"rhythm":68,"comment":"ok"},
"expressivite":{"score":74,"comment":"ok"},
"recommendations":["respirer"],"strengths":["présence"],"summary":"Bonne prise"}`
