// Package synth generates plausible canonical emotion vectors when real
// inference is unavailable, failed, empty, or timed out.
//
// Two hard guarantees: determinism (same capture key yields the same vector,
// forever) and variation (distinct keys yield visibly different vectors with
// high probability). No real randomness source is ever consulted;
// reproducibility under test is a requirement, not an optimization.
package synth

import (
	"math"

	"github.com/kresnabayu/cermin/server/domain/entities"
	"github.com/kresnabayu/cermin/server/internal/taxonomy"
)

// curves defines, per canonical category, a bounded linear function of the
// seed. Slopes and offsets differ so categories do not move in lockstep.
// The Confidence curve stays inside [0,1) without wrapping, so distinct
// seeds always produce distinct Confidence scores.
var curves = []struct {
	label  string
	slope  float64
	offset float64
}{
	{taxonomy.CategoryConfidence, 0.52, 0.31},
	{taxonomy.CategoryJoy, 0.77, 0.12},
	{taxonomy.CategoryCalmness, 0.43, 0.55},
	{taxonomy.CategoryNervous, 0.61, 0.83},
	{taxonomy.CategoryExcitement, 0.89, 0.27},
}

// Seed derives a deterministic value in [0,1) from a capture key using a
// signed 32-bit rolling multiply-add hash of the key's canonical string form.
func Seed(key entities.CaptureKey) float64 {
	var h int32
	for _, b := range []byte(key.String()) {
		h = h*31 + int32(b)
	}

	v := int64(h)
	if v < 0 {
		v = -v
	}
	return float64(v%1000) / 1000.0
}

// Synthesize produces the canonical emotion vector for a capture key
func Synthesize(key entities.CaptureKey) entities.EmotionVector {
	seed := Seed(key)

	vector := make(entities.EmotionVector, 0, len(curves))
	for _, c := range curves {
		score := math.Mod(c.offset+seed*c.slope, 1.0)
		vector = append(vector, entities.EmotionScore{
			Label: c.label,
			Score: entities.ClampScore(score),
		})
	}
	return vector
}
