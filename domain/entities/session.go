package entities

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the status of an interview session
type SessionStatus string

const (
	SessionStatusActive     SessionStatus = "active"
	SessionStatusExpired    SessionStatus = "expired"
	SessionStatusTerminated SessionStatus = "terminated"
)

// InterviewSession represents one scripted question/answer session for a
// candidate. Rounds lists round IDs in the order the capture trigger first
// touched them.
type InterviewSession struct {
	ID          string    `json:"id" bson:"_id,omitempty"`
	CandidateID string    `json:"candidate_id" bson:"candidate_id"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`

	// mu guards the mutable fields below. Capture triggers for one session
	// arrive concurrently, each touching activity state.
	mu           sync.Mutex
	LastActiveAt time.Time     `json:"last_active_at" bson:"last_active_at"`
	ExpiresAt    time.Time     `json:"expires_at" bson:"expires_at"`
	Status       SessionStatus `json:"status" bson:"status"`
	Rounds       []string      `json:"rounds" bson:"rounds"`
}

// NewInterviewSession creates a new active session for a candidate
func NewInterviewSession(candidateID string) *InterviewSession {
	now := time.Now()
	return &InterviewSession{
		ID:           uuid.New().String(),
		CandidateID:  candidateID,
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(2 * time.Hour),
		Status:       SessionStatusActive,
		Rounds:       make([]string, 0),
	}
}

// TouchRound records activity on a round, appending it on first sight
func (s *InterviewSession) TouchRound(roundID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := false
	for _, r := range s.Rounds {
		if r == roundID {
			seen = true
			break
		}
	}
	if !seen {
		s.Rounds = append(s.Rounds, roundID)
	}
	s.touchLocked()
}

// UpdateLastActive updates the last active timestamp and extends expiration
func (s *InterviewSession) UpdateLastActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
}

func (s *InterviewSession) touchLocked() {
	s.LastActiveAt = time.Now()
	// An interview session goes stale two hours after its last activity
	s.ExpiresAt = s.LastActiveAt.Add(2 * time.Hour)
}

// IsExpired checks if the session has expired or is otherwise inactive
func (s *InterviewSession) IsExpired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Now().After(s.ExpiresAt) || s.Status != SessionStatusActive
}

// Terminate marks the session as terminated
func (s *InterviewSession) Terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = SessionStatusTerminated
	s.LastActiveAt = time.Now()
}

// Expire marks the session as expired
func (s *InterviewSession) Expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = SessionStatusExpired
}

// Validate validates the session data
func (s *InterviewSession) Validate() error {
	if s.ID == "" {
		return errors.New("session id is required")
	}
	if s.CandidateID == "" {
		return errors.New("candidate_id is required")
	}
	if s.Status != SessionStatusActive && s.Status != SessionStatusExpired && s.Status != SessionStatusTerminated {
		return errors.New("invalid session status")
	}
	return nil
}
