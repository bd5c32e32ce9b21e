package usecase

import (
	"time"

	"go.uber.org/zap"

	"github.com/kresnabayu/cermin/server/domain/entities"
	"github.com/kresnabayu/cermin/server/domain/repositories"
	"github.com/kresnabayu/cermin/server/internal/taxonomy"
)

// overallRoundID labels the flattened all-rounds aggregate in reports
const overallRoundID = "overall"

// ReportService turns stored expressions into reportable statistics
type ReportService struct {
	store  repositories.ExpressionStore
	logger *zap.Logger
}

// NewReportService creates a report service over one session's store
func NewReportService(store repositories.ExpressionStore, logger *zap.Logger) *ReportService {
	return &ReportService{
		store:  store,
		logger: logger,
	}
}

// PerRound aggregates the expressions of one round. A round with zero
// expressions yields zeroed averages and the lowest tier, never an error.
func (s *ReportService) PerRound(roundID string) entities.RoundReport {
	all := s.store.All()

	roundExprs := make([]entities.QuestionExpression, 0, len(all))
	for _, expr := range all {
		if expr.RoundID == roundID {
			roundExprs = append(roundExprs, expr)
		}
	}

	return buildRoundReport(roundID, roundExprs)
}

// Overall builds the full session report. The overall aggregate is
// recomputed from the flattened set of all expressions across all rounds, so
// every question weighs equally; it is never an average of per-round
// averages, which would skew toward small rounds.
func (s *ReportService) Overall(sessionID string) entities.SessionReport {
	all := s.store.All()

	// Rounds in first-appearance order
	roundOrder := make([]string, 0)
	byRound := make(map[string][]entities.QuestionExpression)
	for _, expr := range all {
		if _, seen := byRound[expr.RoundID]; !seen {
			roundOrder = append(roundOrder, expr.RoundID)
		}
		byRound[expr.RoundID] = append(byRound[expr.RoundID], expr)
	}

	rounds := make([]entities.RoundReport, 0, len(roundOrder))
	for _, roundID := range roundOrder {
		rounds = append(rounds, buildRoundReport(roundID, byRound[roundID]))
	}

	report := entities.SessionReport{
		SessionID:   sessionID,
		GeneratedAt: time.Now(),
		Overall:     buildRoundReport(overallRoundID, all),
		Rounds:      rounds,
	}

	s.logger.Debug("Session report generated",
		zap.String("sessionID", sessionID),
		zap.Int("questionCount", report.Overall.QuestionCount),
		zap.Int("roundCount", len(rounds)))

	return report
}

// buildRoundReport computes category averages, the dominant category, and
// the performance tier for a set of expressions. A category absent from an
// expression contributes zero to its sum; the denominator is always the
// expression count, so absence dilutes rather than disappears.
func buildRoundReport(roundID string, exprs []entities.QuestionExpression) entities.RoundReport {
	averages := make(map[string]float64, len(taxonomy.Categories))
	for _, category := range taxonomy.Categories {
		averages[category] = 0
	}

	if len(exprs) == 0 {
		return entities.RoundReport{
			RoundID:          roundID,
			QuestionCount:    0,
			CategoryAverages: averages,
			DominantCategory: "",
			Tier:             entities.TierNeedsImprovement,
		}
	}

	// Canonical categories first, then pass-through labels in first-seen
	// order, so the dominant tie-break is deterministic
	labelOrder := append([]string(nil), taxonomy.Categories...)
	seen := make(map[string]struct{}, len(labelOrder))
	for _, label := range labelOrder {
		seen[label] = struct{}{}
	}

	sums := make(map[string]float64)
	for _, expr := range exprs {
		for _, score := range expr.Vector {
			sums[score.Label] += score.Score
			if _, ok := seen[score.Label]; !ok {
				seen[score.Label] = struct{}{}
				labelOrder = append(labelOrder, score.Label)
			}
		}
	}

	for label, sum := range sums {
		averages[label] = sum / float64(len(exprs))
	}

	dominant := ""
	best := -1.0
	for _, label := range labelOrder {
		if avg := averages[label]; avg > best {
			best = avg
			dominant = label
		}
	}

	return entities.RoundReport{
		RoundID:          roundID,
		QuestionCount:    len(exprs),
		CategoryAverages: averages,
		DominantCategory: dominant,
		Tier:             entities.TierForConfidence(averages[taxonomy.CategoryConfidence]),
	}
}
