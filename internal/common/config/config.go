// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig               `mapstructure:"app"`
	Camunda   CamundaConfig           `mapstructure:"camunda"`
	Database  DatabaseConfig          `mapstructure:"database"`
	Workers   map[string]WorkerConfig `mapstructure:"workers"`
	Logging   LoggingConfig           `mapstructure:"logging"`
	Matching  MatchingConfig          `mapstructure:"matching"`
	Cache     CacheConfig             `mapstructure:"cache"`
	Embedding EmbeddingConfig         `mapstructure:"embedding"`
	Server    ServerConfig            `mapstructure:"server"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
	// AutoMigrate creates missing tables at startup.
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// ElasticsearchConfig points at the attendee directory. Leaving addresses
// empty disables the directory; candidate pools then come from Postgres.
type ElasticsearchConfig struct {
	Addresses      []string `mapstructure:"addresses"`
	Username       string   `mapstructure:"username"`
	Password       string   `mapstructure:"password"`
	DirectoryIndex string   `mapstructure:"directory_index"`
}

func (e ElasticsearchConfig) Enabled() bool {
	return len(e.Addresses) > 0
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MatchingConfig tunes selection. Zero values are replaced by defaults.
type MatchingConfig struct {
	TablesPath          string  `mapstructure:"tables_path"`
	AffinityWeight      float64 `mapstructure:"affinity_weight"`
	StrategicWeight     float64 `mapstructure:"strategic_weight"`
	MaxHighAffinity     int     `mapstructure:"max_high_affinity"`
	MaxStrategic        int     `mapstructure:"max_strategic"`
	MinScore            float64 `mapstructure:"min_score"`
	DiversityCap        int     `mapstructure:"diversity_cap"`
	RecencyWindowDays   int     `mapstructure:"recency_window_days"`
	CandidatePoolSize   int     `mapstructure:"candidate_pool_size"`
	EmbeddingMinSimilar float64 `mapstructure:"embedding_min_similarity"`
}

// CacheConfig selects the result cache backend and TTLs (seconds).
type CacheConfig struct {
	Backend   string         `mapstructure:"backend"` // memory | redis
	Namespace string         `mapstructure:"namespace"`
	TTL       CacheTTLConfig `mapstructure:"ttl"`
}

type CacheTTLConfig struct {
	Default               int `mapstructure:"default"`
	FilterOptions         int `mapstructure:"filter_options"`
	QuestionnaireSections int `mapstructure:"questionnaire_sections"`
	Profile               int `mapstructure:"profile"`
	Matches               int `mapstructure:"matches"`
	CalendarEvents        int `mapstructure:"calendar_events"`
}

// EmbeddingConfig selects the embedding provider once per process.
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"` // openai | voyage | hash | none
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
	MemoSize   int    `mapstructure:"memo_size"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// Seconds converts a TTL in seconds from config to time.Duration.
func Seconds(s int) time.Duration {
	return time.Duration(s) * time.Second
}
