package usecase

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/kresnabayu/cermin/server/adapters"
	"github.com/kresnabayu/cermin/server/adapters/hume"
	"github.com/kresnabayu/cermin/server/domain/entities"
	"github.com/kresnabayu/cermin/server/domain/repositories"
	"github.com/kresnabayu/cermin/server/internal/taxonomy"
)

// fastConfig keeps resolution quick enough for tests while preserving the
// poll/deadline race semantics
func fastConfig() PipelineConfig {
	return PipelineConfig{
		PollInterval:    time.Millisecond,
		MaxPollAttempts: 10,
		ResolveDeadline: 100 * time.Millisecond,
		FetchRetries:    3,
		FetchRetryPause: time.Millisecond,
	}
}

func testKey(questionID string) entities.CaptureKey {
	return entities.CaptureKey{RoundID: "technical", QuestionID: questionID, Ordinal: 1}
}

func testImage() repositories.ImageArtifact {
	return repositories.ImageArtifact{Data: []byte("fake-jpeg-bytes"), MIMEType: "image/jpeg"}
}

func newTestPipeline(t *testing.T, mock *hume.MockInference, config PipelineConfig) (*PipelineService, *adapters.MemoryExpressionStore) {
	t.Helper()
	store := adapters.NewMemoryExpressionStore()
	pipeline := NewPipelineService("session-1", mock, store, nil, nil, config, zaptest.NewLogger(t))
	return pipeline, store
}

func TestResolveRealExpression(t *testing.T) {
	mock := hume.NewMockInference(zaptest.NewLogger(t))
	mock.Result = entities.EmotionVector{{Label: "Joy", Score: 0.9}}

	pipeline, store := newTestPipeline(t, mock, fastConfig())

	if accepted := pipeline.TriggerCapture(testKey("q1"), testImage()); !accepted {
		t.Fatal("TriggerCapture() should accept the first trigger")
	}
	pipeline.Drain()

	expr, ok := store.Get("q1")
	if !ok {
		t.Fatal("Expression was not recorded")
	}
	if expr.Source != entities.SourceReal {
		t.Errorf("Expected source %s, got %s", entities.SourceReal, expr.Source)
	}
	if expr.RoundID != "technical" {
		t.Errorf("Expected round technical, got %s", expr.RoundID)
	}
	if err := pipeline.Err(); err != nil {
		t.Errorf("Healthy pipeline should report no write failure, got %v", err)
	}

	dominant, ok := taxonomy.Dominant(expr.Vector)
	if !ok {
		t.Fatal("Recorded vector is empty")
	}
	if dominant.Label != taxonomy.CategoryJoy || dominant.Score != 0.9 {
		t.Errorf("Expected dominant Joy(0.9), got %s(%f)", dominant.Label, dominant.Score)
	}
}

func TestResolveNormalizesUpstreamLabels(t *testing.T) {
	mock := hume.NewMockInference(zaptest.NewLogger(t))
	mock.Result = entities.EmotionVector{
		{Label: "anxiety", Score: 0.7},
		{Label: "happiness", Score: 1.4}, // out of range upstream
	}

	pipeline, store := newTestPipeline(t, mock, fastConfig())
	pipeline.TriggerCapture(testKey("q1"), testImage())
	pipeline.Drain()

	expr, ok := store.Get("q1")
	if !ok {
		t.Fatal("Expression was not recorded")
	}
	if expr.Vector[0].Label != taxonomy.CategoryNervous {
		t.Errorf("Expected anxiety normalized to Nervous, got %s", expr.Vector[0].Label)
	}
	if expr.Vector[1].Label != taxonomy.CategoryJoy || expr.Vector[1].Score != 1.0 {
		t.Errorf("Expected happiness clamped to Joy(1.0), got %s(%f)", expr.Vector[1].Label, expr.Vector[1].Score)
	}
}

func TestFallbackOnTimeout(t *testing.T) {
	mock := hume.NewMockInference(zaptest.NewLogger(t))
	mock.NeverComplete = true

	config := fastConfig()
	config.ResolveDeadline = 20 * time.Millisecond

	pipeline, store := newTestPipeline(t, mock, config)
	pipeline.TriggerCapture(testKey("q1"), testImage())
	pipeline.Drain()

	expr, ok := store.Get("q1")
	if !ok {
		t.Fatal("Timeout should still produce a stored expression")
	}
	if expr.Source != entities.SourceSynthetic {
		t.Errorf("Expected synthetic expression on timeout, got %s", expr.Source)
	}
	if store.Len() != 1 {
		t.Errorf("Expected exactly one entry, got %d", store.Len())
	}
}

func TestFallbackOnSubmissionRejection(t *testing.T) {
	mock := hume.NewMockInference(zaptest.NewLogger(t))
	mock.SubmitErr = errors.New("401 invalid api key")

	pipeline, store := newTestPipeline(t, mock, fastConfig())
	pipeline.TriggerCapture(testKey("q1"), testImage())
	pipeline.Drain()

	expr, ok := store.Get("q1")
	if !ok {
		t.Fatal("Submission rejection should still produce a stored expression")
	}
	if expr.Source != entities.SourceSynthetic {
		t.Errorf("Expected synthetic expression, got %s", expr.Source)
	}
}

func TestFallbackOnFailedJob(t *testing.T) {
	mock := hume.NewMockInference(zaptest.NewLogger(t))
	mock.FailJobs = true

	pipeline, store := newTestPipeline(t, mock, fastConfig())
	pipeline.TriggerCapture(testKey("q1"), testImage())
	pipeline.Drain()

	expr, ok := store.Get("q1")
	if !ok || expr.Source != entities.SourceSynthetic {
		t.Errorf("Failed job should resolve synthetically, got ok=%v source=%s", ok, expr.Source)
	}
}

func TestFallbackOnEmptyResult(t *testing.T) {
	mock := hume.NewMockInference(zaptest.NewLogger(t))
	mock.Result = nil // no face detected

	pipeline, store := newTestPipeline(t, mock, fastConfig())
	pipeline.TriggerCapture(testKey("q1"), testImage())
	pipeline.Drain()

	expr, ok := store.Get("q1")
	if !ok {
		t.Fatal("Empty result should still produce a stored expression")
	}
	if expr.Source != entities.SourceSynthetic {
		t.Errorf("Expected synthetic expression for empty result, got %s", expr.Source)
	}
	if expr.Vector.IsEmpty() {
		t.Error("Synthetic expression should never be empty")
	}
}

func TestFetchRetriesAbsorbPredictionLag(t *testing.T) {
	mock := hume.NewMockInference(zaptest.NewLogger(t))
	mock.FetchLagAttempts = 2 // settles within the three-fetch budget
	mock.Result = entities.EmotionVector{{Label: "Calmness", Score: 0.6}}

	pipeline, store := newTestPipeline(t, mock, fastConfig())
	pipeline.TriggerCapture(testKey("q1"), testImage())
	pipeline.Drain()

	expr, ok := store.Get("q1")
	if !ok {
		t.Fatal("Expression was not recorded")
	}
	if expr.Source != entities.SourceReal {
		t.Errorf("Lagging predictions within budget should still resolve real, got %s", expr.Source)
	}
}

func TestFetchRetryBudgetExhaustion(t *testing.T) {
	mock := hume.NewMockInference(zaptest.NewLogger(t))
	mock.FetchLagAttempts = 10 // never settles within the budget
	mock.Result = entities.EmotionVector{{Label: "Joy", Score: 0.9}}

	pipeline, store := newTestPipeline(t, mock, fastConfig())
	pipeline.TriggerCapture(testKey("q1"), testImage())
	pipeline.Drain()

	expr, ok := store.Get("q1")
	if !ok {
		t.Fatal("Exhausted fetch budget should still produce a stored expression")
	}
	if expr.Source != entities.SourceSynthetic {
		t.Errorf("Expected synthetic expression after fetch budget, got %s", expr.Source)
	}
}

func TestDuplicateTriggerIsDropped(t *testing.T) {
	mock := hume.NewMockInference(zaptest.NewLogger(t))
	mock.PollsUntilComplete = 5
	mock.Result = entities.EmotionVector{{Label: "Joy", Score: 0.9}}

	pipeline, store := newTestPipeline(t, mock, fastConfig())

	if accepted := pipeline.TriggerCapture(testKey("q1"), testImage()); !accepted {
		t.Fatal("First trigger should be accepted")
	}
	if accepted := pipeline.TriggerCapture(testKey("q1"), testImage()); accepted {
		t.Error("Trigger for an outstanding question should be dropped")
	}
	pipeline.Drain()

	if accepted := pipeline.TriggerCapture(testKey("q1"), testImage()); accepted {
		t.Error("Trigger for a resolved question should be dropped")
	}
	pipeline.Drain()

	if store.Len() != 1 {
		t.Errorf("Expected exactly one entry for q1, got %d", store.Len())
	}
}

func TestSharedStoreWriteFailureSurfaces(t *testing.T) {
	mock := hume.NewMockInference(zaptest.NewLogger(t))
	mock.Result = entities.EmotionVector{{Label: "Joy", Score: 0.9}}

	// Two pipelines sharing one store is a wiring bug; the losing write must
	// surface through Err, not vanish into a log line
	store := adapters.NewMemoryExpressionStore()
	logger := zaptest.NewLogger(t)
	first := NewPipelineService("session-1", mock, store, nil, nil, fastConfig(), logger)
	second := NewPipelineService("session-2", mock, store, nil, nil, fastConfig(), logger)

	first.TriggerCapture(testKey("q1"), testImage())
	second.TriggerCapture(testKey("q1"), testImage())
	first.Drain()
	second.Drain()

	if store.Len() != 1 {
		t.Fatalf("Expected exactly one stored expression, got %d", store.Len())
	}

	err := first.Err()
	if err == nil {
		err = second.Err()
	}
	if !errors.Is(err, repositories.ErrDuplicateExpression) {
		t.Errorf("Expected one pipeline to report ErrDuplicateExpression, got %v", err)
	}
	if first.Err() != nil && second.Err() != nil {
		t.Error("Only the losing pipeline should report a write failure")
	}
}

func TestInvalidKeyIsDropped(t *testing.T) {
	mock := hume.NewMockInference(zaptest.NewLogger(t))
	pipeline, store := newTestPipeline(t, mock, fastConfig())

	if accepted := pipeline.TriggerCapture(entities.CaptureKey{QuestionID: "q1"}, testImage()); accepted {
		t.Error("Trigger with missing round ID should be dropped")
	}
	if store.Len() != 0 {
		t.Errorf("Expected no entries, got %d", store.Len())
	}
}

func TestTerminateAbandonsOutstandingJobs(t *testing.T) {
	mock := hume.NewMockInference(zaptest.NewLogger(t))
	mock.NeverComplete = true

	config := fastConfig()
	config.ResolveDeadline = 10 * time.Second // termination must not wait for it

	pipeline, store := newTestPipeline(t, mock, config)
	pipeline.TriggerCapture(testKey("q1"), testImage())

	done := make(chan struct{})
	go func() {
		pipeline.Terminate()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Terminate() did not abandon the outstanding job")
	}

	if store.Len() != 0 {
		t.Errorf("Abandoned job should not write an expression, got %d entries", store.Len())
	}
}

func TestConcurrentQuestionsResolveIndependently(t *testing.T) {
	mock := hume.NewMockInference(zaptest.NewLogger(t))
	mock.Result = entities.EmotionVector{{Label: "Joy", Score: 0.9}}

	pipeline, store := newTestPipeline(t, mock, fastConfig())

	keys := []entities.CaptureKey{
		{RoundID: "technical", QuestionID: "q1", Ordinal: 0},
		{RoundID: "technical", QuestionID: "q2", Ordinal: 1},
		{RoundID: "behavioral", QuestionID: "q3", Ordinal: 0},
	}
	for _, key := range keys {
		if accepted := pipeline.TriggerCapture(key, testImage()); !accepted {
			t.Fatalf("Trigger for %s should be accepted", key.QuestionID)
		}
	}
	pipeline.Drain()

	if store.Len() != 3 {
		t.Fatalf("Expected 3 expressions, got %d", store.Len())
	}

	// Insertion order follows capture-trigger order
	all := store.All()
	for i, key := range keys {
		if all[i].QuestionID != key.QuestionID {
			t.Errorf("Position %d: expected %s, got %s", i, key.QuestionID, all[i].QuestionID)
		}
	}
}
