package embedding

import (
	"fmt"
	"math"

	"github.com/viterin/vek/vek32"

	"match-workers/internal/models"
)

// CosineSimilarity returns dot(a,b)/(|a||b|) in [-1,1]. It fails with
// ErrDimensionMismatch when the lengths differ and returns 0 when either
// vector has zero magnitude.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, nil
	}

	normA := float64(vek32.Dot(a, a))
	normB := float64(vek32.Dot(b, b))
	if normA == 0 || normB == 0 {
		return 0, nil
	}

	sim := float64(vek32.Dot(a, b)) / (math.Sqrt(normA) * math.Sqrt(normB))
	// float32 rounding can push identical vectors just past 1.
	return math.Max(-1, math.Min(1, sim)), nil
}

// ClassifyBySimilarity maps a single similarity to a match type: very close
// profiles are high-affinity, moderately close ones from a different
// industry are strategic.
func ClassifyBySimilarity(similarity float64, sameIndustry bool) models.MatchType {
	switch {
	case similarity >= 0.75:
		return models.MatchTypeHighAffinity
	case similarity >= 0.5 && !sameIndustry:
		return models.MatchTypeStrategic
	case similarity >= 0.6:
		return models.MatchTypeHighAffinity
	default:
		return models.MatchTypeStrategic
	}
}
