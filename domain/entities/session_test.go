package entities

import (
	"testing"
	"time"
)

func TestSessionCreation(t *testing.T) {
	candidateID := "candidate-123"
	session := NewInterviewSession(candidateID)

	if session.CandidateID != candidateID {
		t.Errorf("Expected candidate ID %s, got %s", candidateID, session.CandidateID)
	}

	if session.Status != SessionStatusActive {
		t.Errorf("Expected status %s, got %s", SessionStatusActive, session.Status)
	}

	if len(session.Rounds) != 0 {
		t.Errorf("Expected no rounds, got %d", len(session.Rounds))
	}

	if session.ID == "" {
		t.Error("Expected a generated session ID")
	}

	if !session.ExpiresAt.After(session.CreatedAt) {
		t.Error("Expected expiration after creation")
	}

	if err := session.Validate(); err != nil {
		t.Errorf("New session should be valid, got %v", err)
	}
}

func TestTouchRound(t *testing.T) {
	session := NewInterviewSession("candidate-123")

	session.TouchRound("technical")
	session.TouchRound("behavioral")
	session.TouchRound("technical") // repeat must not duplicate

	if len(session.Rounds) != 2 {
		t.Fatalf("Expected 2 rounds, got %d", len(session.Rounds))
	}
	if session.Rounds[0] != "technical" || session.Rounds[1] != "behavioral" {
		t.Errorf("Unexpected round order: %v", session.Rounds)
	}
}

func TestSessionExpiration(t *testing.T) {
	session := NewInterviewSession("candidate-123")

	if session.IsExpired() {
		t.Error("Fresh session should not be expired")
	}

	session.ExpiresAt = time.Now().Add(-time.Minute)
	if !session.IsExpired() {
		t.Error("Session past its expiration should be expired")
	}

	// Activity extends expiration
	session.UpdateLastActive()
	if session.IsExpired() {
		t.Error("Session should be active again after activity")
	}

	session.Expire()
	if session.Status != SessionStatusExpired {
		t.Errorf("Expected status %s, got %s", SessionStatusExpired, session.Status)
	}
	if !session.IsExpired() {
		t.Error("Expired session should report expired regardless of timestamp")
	}
}

func TestSessionTerminate(t *testing.T) {
	session := NewInterviewSession("candidate-123")

	session.Terminate()

	if session.Status != SessionStatusTerminated {
		t.Errorf("Expected status %s, got %s", SessionStatusTerminated, session.Status)
	}
	if !session.IsExpired() {
		t.Error("Terminated session should count as inactive")
	}
}

func TestSessionValidation(t *testing.T) {
	session := NewInterviewSession("candidate-123")

	session.CandidateID = ""
	if err := session.Validate(); err == nil {
		t.Error("Expected validation error for missing candidate ID")
	}

	session = NewInterviewSession("candidate-123")
	session.Status = SessionStatus("bogus")
	if err := session.Validate(); err == nil {
		t.Error("Expected validation error for invalid status")
	}
}
