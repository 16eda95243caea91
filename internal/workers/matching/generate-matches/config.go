// internal/workers/matching/generate-matches/config.go
package generatematches

import (
	"time"

	"match-workers/internal/common/config"
	"match-workers/internal/matching/selector"
)

type Config struct {
	Timeout           time.Duration
	CandidatePoolSize int
	RecencyWindowDays int
	Selection         selector.Options
}

// LoadConfig reads the matching section and this worker's timeout. A nil
// cfg yields the defaults.
func LoadConfig(cfg *config.Config) *Config {
	c := &Config{
		Timeout:           30 * time.Second,
		CandidatePoolSize: 500,
		RecencyWindowDays: selector.DefaultRecencyWindowDays,
		Selection:         selector.DefaultOptions(),
	}
	if cfg == nil {
		return c
	}

	if wc := config.GetWorkerConfig(cfg, TaskType); wc.Timeout > 0 {
		c.Timeout = config.GetDuration(wc.Timeout)
	}
	m := cfg.Matching
	if m.CandidatePoolSize > 0 {
		c.CandidatePoolSize = m.CandidatePoolSize
	}
	if m.RecencyWindowDays > 0 {
		c.RecencyWindowDays = m.RecencyWindowDays
	}
	if m.MaxHighAffinity > 0 {
		c.Selection.MaxHighAffinity = m.MaxHighAffinity
	}
	if m.MaxStrategic > 0 {
		c.Selection.MaxStrategic = m.MaxStrategic
	}
	if m.DiversityCap > 0 {
		c.Selection.DiversityCap = m.DiversityCap
	}
	c.Selection.MinScore = m.MinScore
	return c
}
