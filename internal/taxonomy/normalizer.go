// Package taxonomy reconciles upstream emotion vocabulary with the canonical
// category set used by all aggregation.
package taxonomy

import (
	"strings"

	"github.com/kresnabayu/cermin/server/domain/entities"
)

// Canonical affect categories. Aggregation and reporting key on these names.
const (
	CategoryConfidence = "Confidence"
	CategoryJoy        = "Joy"
	CategoryCalmness   = "Calmness"
	CategoryNervous    = "Nervous"
	CategoryExcitement = "Excitement"
)

// Categories lists the canonical categories in reporting order
var Categories = []string{
	CategoryConfidence,
	CategoryJoy,
	CategoryCalmness,
	CategoryNervous,
	CategoryExcitement,
}

// synonyms maps lowercased upstream labels to canonical categories. The
// taxonomy is open: labels without an entry pass through unchanged rather
// than being dropped, so signal from unanticipated upstream vocabulary is
// kept.
var synonyms = map[string]string{
	"confidence":   CategoryConfidence,
	"pride":        CategoryConfidence,
	"joy":          CategoryJoy,
	"happiness":    CategoryJoy,
	"satisfaction": CategoryJoy,
	"calmness":     CategoryCalmness,
	"neutral":      CategoryCalmness,
	"nervous":      CategoryNervous,
	"anxiety":      CategoryNervous,
	"fear":         CategoryNervous,
	"doubt":        CategoryNervous,
	"excitement":   CategoryExcitement,
	"surprise":     CategoryExcitement,
}

// CanonicalLabel maps an upstream label to its canonical category, or
// returns it unchanged when no mapping exists
func CanonicalLabel(label string) string {
	if canonical, ok := synonyms[strings.ToLower(strings.TrimSpace(label))]; ok {
		return canonical
	}
	return label
}

// Normalize returns a new vector with canonical labels and scores clamped
// to [0,1]. The input vector is not modified; order is preserved.
func Normalize(vector entities.EmotionVector) entities.EmotionVector {
	normalized := make(entities.EmotionVector, 0, len(vector))
	for _, score := range vector {
		normalized = append(normalized, entities.EmotionScore{
			Label: CanonicalLabel(score.Label),
			Score: entities.ClampScore(score.Score),
		})
	}
	return normalized
}

// Dominant returns the maximum-score entry of a vector. Ties are broken by
// first occurrence in the vector's original order. The second return is
// false for an empty vector.
func Dominant(vector entities.EmotionVector) (entities.EmotionScore, bool) {
	if vector.IsEmpty() {
		return entities.EmotionScore{}, false
	}

	dominant := vector[0]
	for _, score := range vector[1:] {
		if score.Score > dominant.Score {
			dominant = score
		}
	}
	return dominant, true
}
