// internal/workers/matching/generate-matches/models.go
package generatematches

import (
	"time"

	"match-workers/internal/models"
)

type Input struct {
	UserID          string   `json:"userId"`
	Refresh         bool     `json:"refresh"`
	MaxHighAffinity *int     `json:"maxHighAffinity,omitempty"`
	MaxStrategic    *int     `json:"maxStrategic,omitempty"`
	MinScore        *float64 `json:"minScore,omitempty"`
	ExcludeIDs      []string `json:"excludeIds,omitempty"`
}

const (
	SourceGenerated = "generated"
	SourceCache     = "cache"
	SourceStored    = "stored"
)

type Output struct {
	UserID      string                `json:"userId"`
	Matches     []models.Match        `json:"matches"`
	Metrics     models.QualityMetrics `json:"metrics"`
	Considered  int                   `json:"considered"`
	GeneratedAt time.Time             `json:"generatedAt"`
	FromCache   bool                  `json:"fromCache"`
	Source      string                `json:"source"`
	// CandidateSource is "directory" or "database" for generated results.
	CandidateSource string `json:"candidateSource,omitempty"`
}

// cachedMatches is the value stored under matches:{userId}.
type cachedMatches struct {
	Matches     []models.Match        `json:"matches"`
	Metrics     models.QualityMetrics `json:"metrics"`
	Considered  int                   `json:"considered"`
	GeneratedAt time.Time             `json:"generatedAt"`
}
