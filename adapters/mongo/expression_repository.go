package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/kresnabayu/cermin/server/domain/entities"
	"github.com/kresnabayu/cermin/server/domain/repositories"
)

const (
	expressionsCollection = "expressions"
	reportsCollection     = "reports"
)

// ExpressionRepository archives derived emotion scores and final reports.
// Documents hold only labels, scores, and timestamps; frames never leave the
// capture pipeline.
type ExpressionRepository struct {
	expressions *mongo.Collection
	reports     *mongo.Collection
}

// NewExpressionRepository creates a new MongoDB expression archive
func NewExpressionRepository(db *mongo.Database) repositories.ExpressionArchive {
	return &ExpressionRepository{
		expressions: db.Collection(expressionsCollection),
		reports:     db.Collection(reportsCollection),
	}
}

// SaveExpression implements repositories.ExpressionArchive
func (r *ExpressionRepository) SaveExpression(ctx context.Context, sessionID string, expr entities.QuestionExpression) error {
	if sessionID == "" {
		return errors.New("session ID cannot be empty")
	}
	if err := expr.Validate(); err != nil {
		return fmt.Errorf("invalid expression: %w", err)
	}

	scores := make([]bson.M, 0, len(expr.Vector))
	for _, score := range expr.Vector {
		scores = append(scores, bson.M{
			"label": score.Label,
			"score": score.Score,
		})
	}

	doc := bson.M{
		"session_id":  sessionID,
		"round_id":    expr.RoundID,
		"question_id": expr.QuestionID,
		"source":      string(expr.Source),
		"captured_at": expr.CapturedAt,
		"capture_seq": expr.CaptureSeq,
		"scores":      scores,
	}

	if _, err := r.expressions.InsertOne(ctx, doc); err != nil {
		// The unique index on session_id+question_id enforces the one-shot
		// write rule here too
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("question %s: %w", expr.QuestionID, repositories.ErrDuplicateExpression)
		}
		return fmt.Errorf("failed to archive expression: %w", err)
	}
	return nil
}

// SaveReport implements repositories.ExpressionArchive
func (r *ExpressionRepository) SaveReport(ctx context.Context, report entities.SessionReport) error {
	if report.SessionID == "" {
		return errors.New("report session ID cannot be empty")
	}

	rounds := make([]bson.M, 0, len(report.Rounds))
	for _, round := range report.Rounds {
		rounds = append(rounds, roundReportDoc(round))
	}

	doc := bson.M{
		"session_id":   report.SessionID,
		"generated_at": report.GeneratedAt,
		"overall":      roundReportDoc(report.Overall),
		"rounds":       rounds,
	}

	if _, err := r.reports.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to archive report: %w", err)
	}
	return nil
}

func roundReportDoc(report entities.RoundReport) bson.M {
	return bson.M{
		"round_id":          report.RoundID,
		"question_count":    report.QuestionCount,
		"category_averages": report.CategoryAverages,
		"dominant_category": report.DominantCategory,
		"tier":              string(report.Tier),
	}
}
