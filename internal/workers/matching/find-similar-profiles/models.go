// internal/workers/matching/find-similar-profiles/models.go
package findsimilarprofiles

import "match-workers/internal/models"

type Input struct {
	UserID        string   `json:"userId"`
	Limit         int      `json:"limit,omitempty"`
	MinSimilarity *float64 `json:"minSimilarity,omitempty"`
}

const (
	SourceEmbedding  = "embedding"
	SourceAttributes = "attributes"
)

type Result struct {
	UserID     string               `json:"userId"`
	Similarity float64              `json:"similarity"`
	Type       models.MatchType     `json:"type"`
	Profile    models.PublicProfile `json:"profile"`
}

type Output struct {
	UserID  string   `json:"userId"`
	Source  string   `json:"source"`
	Results []Result `json:"results"`
}
