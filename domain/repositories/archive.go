package repositories

import (
	"context"

	"github.com/kresnabayu/cermin/server/domain/entities"
)

// ExpressionArchive persists derived scores for offline review. Only
// resolved expressions and reports pass through here, never media.
type ExpressionArchive interface {
	// SaveExpression archives one resolved expression
	SaveExpression(ctx context.Context, sessionID string, expr entities.QuestionExpression) error
	// SaveReport archives the final report of a session
	SaveReport(ctx context.Context, report entities.SessionReport) error
}
