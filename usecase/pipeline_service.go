package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kresnabayu/cermin/server/domain/entities"
	"github.com/kresnabayu/cermin/server/domain/repositories"
	"github.com/kresnabayu/cermin/server/internal/synth"
	"github.com/kresnabayu/cermin/server/internal/taxonomy"
)

const (
	defaultPollInterval    = 1 * time.Second
	defaultMaxPollAttempts = 30
	defaultResolveDeadline = 20 * time.Second
	defaultFetchRetries    = 3
	defaultFetchRetryPause = 500 * time.Millisecond
)

// PipelineConfig tunes the resolution of one capture into one expression
type PipelineConfig struct {
	// PollInterval is the fixed pause between job status queries
	PollInterval time.Duration
	// MaxPollAttempts bounds the number of status queries per job
	MaxPollAttempts int
	// ResolveDeadline is the wall-clock budget for one resolution; it races
	// the poll loop, and whichever finishes first wins
	ResolveDeadline time.Duration
	// FetchRetries bounds the predictions fetches after the completed signal
	FetchRetries int
	// FetchRetryPause is the pause between predictions fetches
	FetchRetryPause time.Duration
}

func (c PipelineConfig) withDefaults() PipelineConfig {
	if c.PollInterval == 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.MaxPollAttempts == 0 {
		c.MaxPollAttempts = defaultMaxPollAttempts
	}
	if c.ResolveDeadline == 0 {
		c.ResolveDeadline = defaultResolveDeadline
	}
	if c.FetchRetries == 0 {
		c.FetchRetries = defaultFetchRetries
	}
	if c.FetchRetryPause == 0 {
		c.FetchRetryPause = defaultFetchRetryPause
	}
	return c
}

// ExpressionNotifier receives each expression as it reaches the store.
// Implementations must not block.
type ExpressionNotifier interface {
	NotifyExpression(sessionID string, expr entities.QuestionExpression)
}

// PipelineService resolves capture triggers into stored expressions for one
// interview session. Every remote failure mode (submission rejection, poll
// timeout, failed job, empty or malformed result) is absorbed here and
// converted into a synthetic expression; degraded signal is always better
// than a stalled session. The only error that ever surfaces is a duplicate
// write, which indicates a caller-side bug.
type PipelineService struct {
	sessionID string
	inference repositories.EmotionInference
	store     repositories.ExpressionStore
	archive   repositories.ExpressionArchive // optional
	notifier  ExpressionNotifier             // optional
	config    PipelineConfig
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]struct{} // question IDs with an outstanding job
	seq      int64               // capture trigger sequence, guarded by mu
	writeErr error               // first store write failure, guarded by mu
}

// NewPipelineService creates the pipeline for one session. The archive and
// notifier may be nil.
func NewPipelineService(
	sessionID string,
	inference repositories.EmotionInference,
	store repositories.ExpressionStore,
	archive repositories.ExpressionArchive,
	notifier ExpressionNotifier,
	config PipelineConfig,
	logger *zap.Logger,
) *PipelineService {
	ctx, cancel := context.WithCancel(context.Background())
	return &PipelineService{
		sessionID: sessionID,
		inference: inference,
		store:     store,
		archive:   archive,
		notifier:  notifier,
		config:    config.withDefaults(),
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		inflight:  make(map[string]struct{}),
	}
}

// TriggerCapture starts resolving one capture in the background. A trigger
// for a question that already has an outstanding or resolved job is dropped
// and reported as false; this keeps writes one-per-question regardless of
// how eagerly the capture trigger fires.
//
// The image is handed off to the resolution goroutine and released as soon
// as submission returns; it is never retained during polling.
func (p *PipelineService) TriggerCapture(key entities.CaptureKey, image repositories.ImageArtifact) bool {
	if err := key.Validate(); err != nil {
		p.logger.Warn("Dropping capture trigger with invalid key",
			zap.String("key", key.String()),
			zap.Error(err))
		return false
	}

	p.mu.Lock()
	if _, outstanding := p.inflight[key.QuestionID]; outstanding {
		p.mu.Unlock()
		p.logger.Debug("Dropping capture trigger, job already outstanding",
			zap.String("questionID", key.QuestionID))
		return false
	}
	if _, resolved := p.store.Get(key.QuestionID); resolved {
		p.mu.Unlock()
		p.logger.Debug("Dropping capture trigger, question already resolved",
			zap.String("questionID", key.QuestionID))
		return false
	}
	p.inflight[key.QuestionID] = struct{}{}
	p.seq++
	seq := p.seq
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.resolve(seq, key, image)
	}()

	return true
}

// Drain waits for all outstanding resolutions to reach the store
func (p *PipelineService) Drain() {
	p.wg.Wait()
}

// Err reports the first store write failure observed by any resolution. The
// in-flight bookkeeping makes a duplicate write unreachable through a single
// pipeline, so a non-nil value indicates a wiring bug such as two pipelines
// sharing one store.
func (p *PipelineService) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writeErr
}

// Terminate abandons outstanding jobs unconditionally and waits for their
// goroutines to exit. Abandoned remote computations simply continue
// unobserved; their eventual results are discarded.
func (p *PipelineService) Terminate() {
	p.cancel()
	p.wg.Wait()
}

// resolve drives one question through its whole lifecycle, ending at the
// store. Terminal by construction: every path yields either a real or a
// synthetic expression, except session termination, which abandons the
// question entirely.
func (p *PipelineService) resolve(seq int64, key entities.CaptureKey, image repositories.ImageArtifact) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(p.ctx, p.config.ResolveDeadline)
	defer cancel()

	vector, source := p.acquire(ctx, key, image)

	// The in-flight entry is released only after the store write below, so
	// a trigger arriving in between still sees the question as outstanding.
	defer func() {
		p.mu.Lock()
		delete(p.inflight, key.QuestionID)
		p.mu.Unlock()
	}()

	if p.ctx.Err() != nil {
		p.logger.Info("Abandoning capture, session ended while job outstanding",
			zap.String("questionID", key.QuestionID))
		return
	}

	expr := entities.NewQuestionExpression(key, taxonomy.Normalize(vector), source)
	expr.CaptureSeq = seq
	if err := p.store.Put(expr); err != nil {
		p.mu.Lock()
		if p.writeErr == nil {
			p.writeErr = err
		}
		p.mu.Unlock()
		p.logger.Error("Failed to record expression",
			zap.String("questionID", key.QuestionID),
			zap.Error(err))
		return
	}

	p.logger.Info("Expression recorded",
		zap.String("questionID", key.QuestionID),
		zap.String("roundID", key.RoundID),
		zap.String("source", string(source)),
		zap.Duration("elapsed", time.Since(start)))

	if p.archive != nil {
		archiveCtx, archiveCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := p.archive.SaveExpression(archiveCtx, p.sessionID, expr); err != nil {
			p.logger.Warn("Failed to archive expression",
				zap.String("questionID", key.QuestionID),
				zap.Error(err))
		}
		archiveCancel()
	}

	if p.notifier != nil {
		p.notifier.NotifyExpression(p.sessionID, expr)
	}
}

// acquire turns one frame into a vector plus its provenance. Every failure
// mode routes to the deterministic synthesizer; none is surfaced.
func (p *PipelineService) acquire(ctx context.Context, key entities.CaptureKey, image repositories.ImageArtifact) (entities.EmotionVector, entities.ExpressionSource) {
	start := time.Now()

	jobID, err := p.inference.SubmitJob(ctx, image)
	if err != nil {
		p.logger.Warn("Job submission rejected, synthesizing expression",
			zap.String("questionID", key.QuestionID),
			zap.Error(err))
		return synth.Synthesize(key), entities.SourceSynthetic
	}

	status := p.pollJob(ctx, key, jobID)
	if status != repositories.JobStatusCompleted {
		p.logger.Info("Job did not complete, synthesizing expression",
			zap.String("questionID", key.QuestionID),
			zap.String("jobID", jobID),
			zap.String("lastStatus", string(status)),
			zap.Duration("elapsed", time.Since(start)))
		return synth.Synthesize(key), entities.SourceSynthetic
	}

	vector := p.fetchWithRetry(ctx, key, jobID)
	if vector.IsEmpty() {
		p.logger.Info("Job completed without usable signal, synthesizing expression",
			zap.String("questionID", key.QuestionID),
			zap.String("jobID", jobID),
			zap.Duration("elapsed", time.Since(start)))
		return synth.Synthesize(key), entities.SourceSynthetic
	}

	return vector, entities.SourceReal
}

// pollJob queries job status at a fixed interval up to the attempt bound,
// racing the resolution deadline carried by ctx. Deadline expiry abandons
// the in-flight poll; the job keeps running remotely, unobserved.
func (p *PipelineService) pollJob(ctx context.Context, key entities.CaptureKey, jobID string) repositories.JobStatus {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	status := repositories.JobStatusQueued
	for attempt := 1; attempt <= p.config.MaxPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			p.logger.Info("Poll deadline expired",
				zap.String("questionID", key.QuestionID),
				zap.String("jobID", jobID),
				zap.Int("pollAttempts", attempt-1))
			return status

		case <-ticker.C:
			current, err := p.inference.GetJobStatus(ctx, jobID)
			if err != nil {
				p.logger.Debug("Job status query failed",
					zap.String("jobID", jobID),
					zap.Int("attempt", attempt),
					zap.Error(err))
				continue
			}
			status = current
			if status == repositories.JobStatusCompleted || status == repositories.JobStatusFailed {
				return status
			}
		}
	}

	return status
}

// fetchWithRetry reads the predictions of a completed job. The payload is
// not guaranteed to be consistent with the completed signal immediately, so
// a missing layer means try again, not fail. After the retry budget the
// result is treated as empty, which the caller routes to the synthesizer.
func (p *PipelineService) fetchWithRetry(ctx context.Context, key entities.CaptureKey, jobID string) entities.EmotionVector {
	for attempt := 1; attempt <= p.config.FetchRetries; attempt++ {
		vector, err := p.inference.FetchPredictions(ctx, jobID)
		if err == nil {
			return vector
		}

		p.logger.Debug("Predictions not settled",
			zap.String("questionID", key.QuestionID),
			zap.String("jobID", jobID),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt < p.config.FetchRetries {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.config.FetchRetryPause):
			}
		}
	}

	return nil
}
