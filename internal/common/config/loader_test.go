package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseYAML = `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    database: matching
    user: matcher
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// ==========================
// Defaults
// ==========================

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, baseYAML))
	require.NoError(t, err)

	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, "attendees", cfg.Database.Elasticsearch.DirectoryIndex)
	assert.False(t, cfg.Database.Elasticsearch.Enabled())

	assert.Equal(t, 0.6, cfg.Matching.AffinityWeight)
	assert.Equal(t, 0.4, cfg.Matching.StrategicWeight)
	assert.Equal(t, 3, cfg.Matching.MaxHighAffinity)
	assert.Equal(t, 3, cfg.Matching.MaxStrategic)
	assert.Equal(t, 0.15, cfg.Matching.MinScore)
	assert.Equal(t, 6, cfg.Matching.DiversityCap)
	assert.Equal(t, 30, cfg.Matching.RecencyWindowDays)
	assert.Equal(t, 500, cfg.Matching.CandidatePoolSize)

	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 300, cfg.Cache.TTL.Default)
	assert.Equal(t, 600, cfg.Cache.TTL.Matches)
	assert.Equal(t, 180, cfg.Cache.TTL.CalendarEvents)

	assert.Equal(t, "none", cfg.Embedding.Provider)
	assert.Equal(t, 2048, cfg.Embedding.MemoSize)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile_WorkerDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, baseYAML+`
workers:
  generate-matches:
    enabled: true
  embed-profiles:
    enabled: false
    timeout: 60000
`))
	require.NoError(t, err)

	gm := GetWorkerConfig(cfg, "generate-matches")
	assert.True(t, gm.Enabled)
	assert.Equal(t, 5, gm.MaxJobsActive)
	assert.Equal(t, 30000, gm.Timeout)
	assert.Equal(t, 3, gm.MaxRetries)

	assert.False(t, IsWorkerEnabled(cfg, "embed-profiles"))
	assert.Equal(t, 60*time.Second, GetDuration(GetWorkerConfig(cfg, "embed-profiles").Timeout))

	// Unlisted workers run with defaults.
	assert.True(t, IsWorkerEnabled(cfg, "find-similar-profiles"))
	assert.Equal(t, 30000, GetWorkerConfig(cfg, "find-similar-profiles").Timeout)
}

func TestLoadFromFile_ExpandsEnvVars(t *testing.T) {
	t.Setenv("MATCH_TEST_BROKER", "zeebe:26500")
	t.Setenv("MATCH_TEST_REDIS", "redis:6379")

	cfg, err := LoadFromFile(writeConfig(t, `
camunda:
  broker_address: ${MATCH_TEST_BROKER}
database:
  postgres:
    host: localhost
    database: matching
    user: matcher
  redis:
    address: ${MATCH_TEST_REDIS}
cache:
  backend: redis
`))
	require.NoError(t, err)
	assert.Equal(t, "zeebe:26500", cfg.Camunda.BrokerAddress)
	assert.Equal(t, "redis:6379", cfg.Database.Redis.Address)
}

func TestLoadFromFile_EmbeddingKeyFromEnv(t *testing.T) {
	t.Setenv("VOYAGE_API_KEY", "vk-test")

	cfg, err := LoadFromFile(writeConfig(t, baseYAML+`
embedding:
  provider: voyage
`))
	require.NoError(t, err)
	assert.Equal(t, "vk-test", cfg.Embedding.APIKey)
}

// ==========================
// Validation
// ==========================

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"missing broker", `
database:
  postgres: {host: localhost, database: matching, user: matcher}
`, "broker_address"},
		{"missing postgres host", `
camunda: {broker_address: localhost:26500}
database:
  postgres: {database: matching, user: matcher}
`, "postgres.host"},
		{"unknown cache backend", baseYAML + `
cache: {backend: memcached}
`, "cache.backend"},
		{"redis backend without address", baseYAML + `
cache: {backend: redis}
`, "redis.address"},
		{"unknown provider", baseYAML + `
embedding: {provider: cohere}
`, "embedding.provider"},
		{"min score out of range", baseYAML + `
matching: {min_score: 1.5}
`, "min_score"},
		{"negative weight", baseYAML + `
matching: {affinity_weight: -1, strategic_weight: 1}
`, "weight"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, 90*time.Second, Seconds(90))
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))

	pg := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "m", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=m sslmode=disable", pg.GetDSN())

	assert.True(t, ElasticsearchConfig{Addresses: []string{"http://es:9200"}}.Enabled())
}
