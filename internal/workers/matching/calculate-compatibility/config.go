// internal/workers/matching/calculate-compatibility/config.go
package calculatecompatibility

import (
	"time"

	"match-workers/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	c := &Config{Timeout: 10 * time.Second}
	if cfg == nil {
		return c
	}
	if wc := config.GetWorkerConfig(cfg, TaskType); wc.Timeout > 0 {
		c.Timeout = config.GetDuration(wc.Timeout)
	}
	return c
}
