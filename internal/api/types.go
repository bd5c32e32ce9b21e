package api

import "time"

// CreateSessionRequest represents the request payload for session creation
type CreateSessionRequest struct {
	CandidateID string `json:"candidate_id" validate:"required"`
}

// CreateSessionResponse represents the response payload for session creation
type CreateSessionResponse struct {
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CaptureResponse reports whether a capture trigger was accepted. A dropped
// trigger is not an error; the question already has an outstanding or
// resolved expression.
type CaptureResponse struct {
	Accepted   bool   `json:"accepted"`
	QuestionID string `json:"question_id"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
