package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kresnabayu/cermin/server/adapters"
	"github.com/kresnabayu/cermin/server/domain/entities"
	"github.com/kresnabayu/cermin/server/domain/repositories"
)

// ErrSessionNotFound is returned for operations on an unknown session
var ErrSessionNotFound = errors.New("session not found")

// SessionRuntime bundles everything one live interview session owns: its
// entity, its expression store, its pipeline, and its report service. The
// runtime is built at session creation and discarded at session end, so no
// state leaks across sessions.
type SessionRuntime struct {
	Session  *entities.InterviewSession
	Store    repositories.ExpressionStore
	Pipeline *PipelineService
	Reports  *ReportService
}

// SessionService creates, looks up, and terminates interview sessions
type SessionService struct {
	inference repositories.EmotionInference
	archive   repositories.ExpressionArchive // optional
	notifier  ExpressionNotifier             // optional
	config    PipelineConfig
	logger    *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*SessionRuntime
}

// NewSessionService creates a session service. The archive and notifier may
// be nil; they are threaded into every session's pipeline.
func NewSessionService(
	inference repositories.EmotionInference,
	archive repositories.ExpressionArchive,
	notifier ExpressionNotifier,
	config PipelineConfig,
	logger *zap.Logger,
) *SessionService {
	return &SessionService{
		inference: inference,
		archive:   archive,
		notifier:  notifier,
		config:    config,
		logger:    logger,
		sessions:  make(map[string]*SessionRuntime),
	}
}

// CreateSession constructs a fresh session runtime for a candidate
func (s *SessionService) CreateSession(candidateID string) (*SessionRuntime, error) {
	if candidateID == "" {
		return nil, errors.New("candidate ID cannot be empty")
	}

	session := entities.NewInterviewSession(candidateID)
	store := adapters.NewMemoryExpressionStore()

	runtime := &SessionRuntime{
		Session:  session,
		Store:    store,
		Pipeline: NewPipelineService(session.ID, s.inference, store, s.archive, s.notifier, s.config, s.logger),
		Reports:  NewReportService(store, s.logger),
	}

	s.mu.Lock()
	s.sessions[session.ID] = runtime
	s.mu.Unlock()

	s.logger.Info("Interview session created",
		zap.String("sessionID", session.ID),
		zap.String("candidateID", candidateID))
	return runtime, nil
}

// GetSession returns the runtime of a live session
func (s *SessionService) GetSession(sessionID string) (*SessionRuntime, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	runtime, exists := s.sessions[sessionID]
	return runtime, exists
}

// Capture routes one capture trigger to its session's pipeline. The boolean
// reports whether the trigger was accepted; a duplicate trigger for a
// question is dropped and reported as false.
func (s *SessionService) Capture(sessionID string, key entities.CaptureKey, image repositories.ImageArtifact) (bool, error) {
	runtime, exists := s.GetSession(sessionID)
	if !exists {
		return false, fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
	}
	if runtime.Session.IsExpired() {
		return false, fmt.Errorf("session %s is no longer active", sessionID)
	}

	runtime.Session.TouchRound(key.RoundID)
	return runtime.Pipeline.TriggerCapture(key, image), nil
}

// TerminateSession ends a session: outstanding jobs are abandoned
// unconditionally, the final report is archived, and the runtime is
// discarded.
func (s *SessionService) TerminateSession(ctx context.Context, sessionID string) (entities.SessionReport, error) {
	s.mu.Lock()
	runtime, exists := s.sessions[sessionID]
	if exists {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()

	if !exists {
		return entities.SessionReport{}, fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
	}

	runtime.Pipeline.Terminate()
	if err := runtime.Pipeline.Err(); err != nil {
		s.logger.Error("Pipeline observed a store write failure",
			zap.String("sessionID", sessionID),
			zap.Error(err))
	}
	runtime.Session.Terminate()

	report := runtime.Reports.Overall(sessionID)

	if s.archive != nil {
		archiveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.archive.SaveReport(archiveCtx, report); err != nil {
			s.logger.Warn("Failed to archive session report",
				zap.String("sessionID", sessionID),
				zap.Error(err))
		}
	}

	s.logger.Info("Interview session terminated",
		zap.String("sessionID", sessionID),
		zap.Int("expressions", runtime.Store.Len()))
	return report, nil
}
