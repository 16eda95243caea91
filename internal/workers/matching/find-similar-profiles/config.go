// internal/workers/matching/find-similar-profiles/config.go
package findsimilarprofiles

import (
	"time"

	"match-workers/internal/common/config"
)

type Config struct {
	Timeout           time.Duration
	Model             string
	DefaultLimit      int
	MinSimilarity     float64
	CandidatePoolSize int
}

func LoadConfig(cfg *config.Config) *Config {
	c := &Config{
		Timeout:           20 * time.Second,
		DefaultLimit:      10,
		MinSimilarity:     0.5,
		CandidatePoolSize: 500,
	}
	if cfg == nil {
		return c
	}
	if wc := config.GetWorkerConfig(cfg, TaskType); wc.Timeout > 0 {
		c.Timeout = config.GetDuration(wc.Timeout)
	}
	c.Model = cfg.Embedding.Model
	if cfg.Matching.EmbeddingMinSimilar != 0 {
		c.MinSimilarity = cfg.Matching.EmbeddingMinSimilar
	}
	if cfg.Matching.CandidatePoolSize > 0 {
		c.CandidatePoolSize = cfg.Matching.CandidatePoolSize
	}
	return c
}
