package entities

import "time"

// PerformanceTier buckets an averaged Confidence score for reporting
type PerformanceTier string

const (
	TierExcellent        PerformanceTier = "excellent"
	TierGood             PerformanceTier = "good"
	TierFair             PerformanceTier = "fair"
	TierNeedsImprovement PerformanceTier = "needs_improvement"
)

// TierForConfidence maps an averaged Confidence score to a performance tier
func TierForConfidence(avg float64) PerformanceTier {
	switch {
	case avg >= 0.7:
		return TierExcellent
	case avg >= 0.5:
		return TierGood
	case avg >= 0.3:
		return TierFair
	default:
		return TierNeedsImprovement
	}
}

// RoundReport holds the aggregated statistics for one interview round
type RoundReport struct {
	RoundID          string             `json:"round_id" bson:"round_id"`
	QuestionCount    int                `json:"question_count" bson:"question_count"`
	CategoryAverages map[string]float64 `json:"category_averages" bson:"category_averages"`
	DominantCategory string             `json:"dominant_category" bson:"dominant_category"`
	Tier             PerformanceTier    `json:"performance_tier" bson:"performance_tier"`
}

// SessionReport holds the aggregated statistics for a whole interview
// session. Overall is recomputed over the flattened expressions of all
// rounds, so rounds with more questions weigh proportionally more.
type SessionReport struct {
	SessionID   string        `json:"session_id" bson:"session_id"`
	GeneratedAt time.Time     `json:"generated_at" bson:"generated_at"`
	Overall     RoundReport   `json:"overall" bson:"overall"`
	Rounds      []RoundReport `json:"rounds" bson:"rounds"`
}
