package hume

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kresnabayu/cermin/server/domain/entities"
	"github.com/kresnabayu/cermin/server/domain/repositories"
)

// MockInference is a scriptable in-process implementation of the emotion
// inference service. With the zero-value script it behaves like a healthy
// remote: every job completes on the first status poll and predictions are
// readable immediately.
type MockInference struct {
	logger *zap.Logger

	// SubmitErr, when set, makes every submission fail
	SubmitErr error
	// NeverComplete keeps every job in the running state forever
	NeverComplete bool
	// FailJobs makes every job report the failed state
	FailJobs bool
	// PollsUntilComplete is how many status calls a job answers with
	// running before turning completed (0 means complete immediately)
	PollsUntilComplete int
	// FetchLagAttempts is how many predictions fetches return
	// ErrPredictionsNotReady before the payload settles
	FetchLagAttempts int
	// Result is the vector returned once predictions settle; nil means an
	// empty "no face detected" result
	Result entities.EmotionVector

	mu   sync.Mutex
	jobs map[string]*mockJob
}

type mockJob struct {
	statusCalls int
	fetchCalls  int
}

// Ensure MockInference implements the EmotionInference interface
var _ repositories.EmotionInference = (*MockInference)(nil)

// NewMockInference creates a new mock inference service
func NewMockInference(logger *zap.Logger) *MockInference {
	return &MockInference{
		logger: logger,
		jobs:   make(map[string]*mockJob),
	}
}

// SubmitJob implements repositories.EmotionInference
func (m *MockInference) SubmitJob(ctx context.Context, image repositories.ImageArtifact) (string, error) {
	if m.SubmitErr != nil {
		return "", m.SubmitErr
	}

	jobID := uuid.New().String()

	m.mu.Lock()
	m.jobs[jobID] = &mockJob{}
	m.mu.Unlock()

	m.logger.Info("Mock inference job submitted",
		zap.String("jobID", jobID),
		zap.Int("imageSize", len(image.Data)))
	return jobID, nil
}

// GetJobStatus implements repositories.EmotionInference
func (m *MockInference) GetJobStatus(ctx context.Context, jobID string) (repositories.JobStatus, error) {
	if m.NeverComplete {
		return repositories.JobStatusRunning, nil
	}
	if m.FailJobs {
		return repositories.JobStatusFailed, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists {
		return repositories.JobStatusFailed, nil
	}

	job.statusCalls++
	if job.statusCalls > m.PollsUntilComplete {
		return repositories.JobStatusCompleted, nil
	}
	return repositories.JobStatusRunning, nil
}

// FetchPredictions implements repositories.EmotionInference
func (m *MockInference) FetchPredictions(ctx context.Context, jobID string) (entities.EmotionVector, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists {
		return nil, repositories.ErrPredictionsNotReady
	}

	job.fetchCalls++
	if job.fetchCalls <= m.FetchLagAttempts {
		m.logger.Debug("Mock predictions not settled yet",
			zap.String("jobID", jobID),
			zap.Int("fetchCalls", job.fetchCalls))
		return nil, repositories.ErrPredictionsNotReady
	}

	return m.Result.Clone(), nil
}
