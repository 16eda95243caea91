package selector

import (
	"gonum.org/v1/gonum/stat"

	"match-workers/internal/models"
)

// Quality summarises a match list for reporting. It does not influence
// selection.
func Quality(matches []models.Match) models.QualityMetrics {
	q := models.QualityMetrics{CategoryHistogram: map[models.Category]int{}}
	if len(matches) == 0 {
		return q
	}

	scores := make([]float64, len(matches))
	for i, m := range matches {
		scores[i] = m.Score
		switch m.Type {
		case models.MatchTypeHighAffinity:
			q.HighAffinityCount++
		case models.MatchTypeStrategic:
			q.StrategicCount++
		}
		for _, c := range m.Commonalities {
			q.CategoryHistogram[c.Category]++
		}
	}
	q.AverageScore = stat.Mean(scores, nil)
	return q
}
