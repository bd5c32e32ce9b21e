package repositories

import (
	"errors"

	"github.com/kresnabayu/cermin/server/domain/entities"
)

// ErrDuplicateExpression is returned when a second expression is written for
// a question that already has one. Writes are one-shot: a recorded emotional
// history is never silently overwritten, so a duplicate write signals a
// caller-side protocol violation.
var ErrDuplicateExpression = errors.New("expression already recorded for question")

// ExpressionStore is the single source of truth mapping a question ID to its
// resolved expression for the lifetime of one session. Implementations must
// be safe for concurrent use; resolution goroutines are the writers.
type ExpressionStore interface {
	// Put records the expression for its question. Fails with
	// ErrDuplicateExpression when the question already has one; the first
	// write is preserved untouched.
	Put(expr entities.QuestionExpression) error
	// Get returns the expression for a question, if recorded
	Get(questionID string) (entities.QuestionExpression, bool)
	// All returns the recorded expressions in capture-trigger insertion
	// order, not resolution order
	All() []entities.QuestionExpression
	// Len returns the number of recorded expressions
	Len() int
}
