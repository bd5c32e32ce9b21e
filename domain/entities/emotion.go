package entities

import (
	"errors"
	"fmt"
	"time"
)

// ExpressionSource records how an emotion vector was obtained
type ExpressionSource string

const (
	// SourceReal means at least one score came from a successful, non-empty
	// remote inference result
	SourceReal ExpressionSource = "real"
	// SourceSynthetic means the vector was generated locally by the
	// deterministic synthesizer
	SourceSynthetic ExpressionSource = "synthetic"
)

// EmotionScore is a single named affect score. Scores are independent
// per-label detector outputs and do not sum to 1 across a vector.
type EmotionScore struct {
	Label string  `json:"label" bson:"label"`
	Score float64 `json:"score" bson:"score"`
}

// EmotionVector is an ordered sequence of emotion scores. An empty vector is
// a valid "nothing detected" outcome.
type EmotionVector []EmotionScore

// IsEmpty reports whether the vector carries no scores
func (v EmotionVector) IsEmpty() bool {
	return len(v) == 0
}

// Clone returns an independent copy of the vector
func (v EmotionVector) Clone() EmotionVector {
	if v == nil {
		return nil
	}
	out := make(EmotionVector, len(v))
	copy(out, v)
	return out
}

// ClampScore bounds a score to [0,1]
func ClampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// CaptureKey identifies one capture within a session. The ordinal is the
// position of the question within its round as counted by the capture
// trigger.
type CaptureKey struct {
	RoundID    string `json:"round_id"`
	QuestionID string `json:"question_id"`
	Ordinal    int    `json:"ordinal"`
}

// String renders the key in its canonical round:question:ordinal form
func (k CaptureKey) String() string {
	return fmt.Sprintf("%s:%s:%d", k.RoundID, k.QuestionID, k.Ordinal)
}

// Validate validates the capture key
func (k CaptureKey) Validate() error {
	if k.RoundID == "" {
		return errors.New("round_id is required")
	}
	if k.QuestionID == "" {
		return errors.New("question_id is required")
	}
	if k.Ordinal < 0 {
		return errors.New("ordinal must not be negative")
	}
	return nil
}

// QuestionExpression is the resolved affect record for one question.
// Immutable once written to the expression store.
type QuestionExpression struct {
	QuestionID string           `json:"question_id" bson:"question_id"`
	RoundID    string           `json:"round_id" bson:"round_id"`
	Vector     EmotionVector    `json:"vector" bson:"vector"`
	Source     ExpressionSource `json:"source" bson:"source"`
	CapturedAt time.Time        `json:"captured_at" bson:"captured_at"`
	// CaptureSeq is the session-wide capture trigger sequence number. Two
	// outstanding jobs may resolve out of order relative to when they were
	// triggered; reporting orders by this, never by resolution order.
	CaptureSeq int64 `json:"capture_seq" bson:"capture_seq"`
}

// NewQuestionExpression builds an expression from a capture key and a vector.
// The vector is copied and every score clamped to [0,1] regardless of source.
func NewQuestionExpression(key CaptureKey, vector EmotionVector, source ExpressionSource) QuestionExpression {
	clamped := make(EmotionVector, 0, len(vector))
	for _, s := range vector {
		clamped = append(clamped, EmotionScore{
			Label: s.Label,
			Score: ClampScore(s.Score),
		})
	}

	return QuestionExpression{
		QuestionID: key.QuestionID,
		RoundID:    key.RoundID,
		Vector:     clamped,
		Source:     source,
		CapturedAt: time.Now(),
	}
}

// Validate validates the expression data
func (e QuestionExpression) Validate() error {
	if e.QuestionID == "" {
		return errors.New("question_id is required")
	}
	if e.RoundID == "" {
		return errors.New("round_id is required")
	}
	if e.Source != SourceReal && e.Source != SourceSynthetic {
		return errors.New("invalid expression source")
	}
	if e.Vector == nil {
		return errors.New("vector must not be nil")
	}
	for _, s := range e.Vector {
		if s.Score < 0 || s.Score > 1 {
			return fmt.Errorf("score for %q out of range: %f", s.Label, s.Score)
		}
	}
	return nil
}
