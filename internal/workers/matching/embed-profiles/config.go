// internal/workers/matching/embed-profiles/config.go
package embedprofiles

import (
	"time"

	"match-workers/internal/common/config"
)

type Config struct {
	Timeout time.Duration
	// Model is recorded with each stored vector so only vectors from the
	// same model are compared.
	Model string
}

func LoadConfig(cfg *config.Config) *Config {
	c := &Config{Timeout: 60 * time.Second}
	if cfg == nil {
		return c
	}
	if wc := config.GetWorkerConfig(cfg, TaskType); wc.Timeout > 0 {
		c.Timeout = config.GetDuration(wc.Timeout)
	}
	c.Model = cfg.Embedding.Model
	return c
}
