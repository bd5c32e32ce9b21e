package taxonomy

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kresnabayu/cermin/server/domain/entities"
)

func TestCanonicalLabel(t *testing.T) {
	tests := []struct {
		name     string
		label    string
		expected string
	}{
		{"neutral maps to Calmness", "neutral", CategoryCalmness},
		{"anxiety maps to Nervous", "anxiety", CategoryNervous},
		{"fear maps to Nervous", "fear", CategoryNervous},
		{"doubt maps to Nervous", "doubt", CategoryNervous},
		{"happiness maps to Joy", "happiness", CategoryJoy},
		{"satisfaction maps to Joy", "satisfaction", CategoryJoy},
		{"surprise maps to Excitement", "surprise", CategoryExcitement},
		{"pride maps to Confidence", "pride", CategoryConfidence},
		{"case insensitive", "Anxiety", CategoryNervous},
		{"whitespace trimmed", "  fear ", CategoryNervous},
		{"canonical name passes through", "Joy", CategoryJoy},
		{"lowercase canonical name maps up", "joy", CategoryJoy},
		{"unmapped label passes through unchanged", "Boredom", "Boredom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalLabel(tt.label); got != tt.expected {
				t.Errorf("CanonicalLabel(%q) = %q, want %q", tt.label, got, tt.expected)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	input := entities.EmotionVector{
		{Label: "fear", Score: 0.4},
		{Label: "happiness", Score: 1.7},
		{Label: "Boredom", Score: -0.2},
	}

	got := Normalize(input)

	want := entities.EmotionVector{
		{Label: CategoryNervous, Score: 0.4},
		{Label: CategoryJoy, Score: 1.0},
		{Label: "Boredom", Score: 0.0},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}

	// The input vector must not be modified
	if input[1].Score != 1.7 {
		t.Errorf("Normalize() modified its input: score = %f", input[1].Score)
	}
}

func TestNormalizeEmptyVector(t *testing.T) {
	got := Normalize(entities.EmotionVector{})
	if !got.IsEmpty() {
		t.Errorf("Normalize() of empty vector should be empty, got %v", got)
	}
	if got == nil {
		t.Error("Normalize() of empty vector should not be nil")
	}
}

func TestDominant(t *testing.T) {
	vector := entities.EmotionVector{
		{Label: CategoryJoy, Score: 0.3},
		{Label: CategoryConfidence, Score: 0.9},
		{Label: CategoryCalmness, Score: 0.5},
	}

	dominant, ok := Dominant(vector)
	if !ok {
		t.Fatal("Dominant() returned false for non-empty vector")
	}
	if dominant.Label != CategoryConfidence {
		t.Errorf("Expected dominant %s, got %s", CategoryConfidence, dominant.Label)
	}
}

func TestDominantTieBreaksOnFirstOccurrence(t *testing.T) {
	vector := entities.EmotionVector{
		{Label: CategoryNervous, Score: 0.6},
		{Label: CategoryJoy, Score: 0.6},
		{Label: CategoryExcitement, Score: 0.6},
	}

	dominant, ok := Dominant(vector)
	if !ok {
		t.Fatal("Dominant() returned false for non-empty vector")
	}
	if dominant.Label != CategoryNervous {
		t.Errorf("Tie should break on first occurrence %s, got %s", CategoryNervous, dominant.Label)
	}
}

func TestDominantEmptyVector(t *testing.T) {
	if _, ok := Dominant(entities.EmotionVector{}); ok {
		t.Error("Dominant() should return false for empty vector")
	}
}
