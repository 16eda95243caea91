// Package embedding is the vector similarity path: profile text is embedded
// by a configured provider and compared by cosine similarity.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"match-workers/internal/common/config"
	commonhttp "match-workers/internal/common/http"
)

var (
	ErrNotConfigured      = errors.New("embedding provider not configured")
	ErrDimensionMismatch  = errors.New("vector dimension mismatch")
	ErrProviderFailed     = errors.New("embedding provider request failed")
	ErrUnexpectedResponse = errors.New("embedding provider returned an unexpected response")
)

const (
	ProviderOpenAI = "openai"
	ProviderVoyage = "voyage"
	ProviderHash   = "hash"
	ProviderNone   = "none"
)

// Provider turns text into fixed-length vectors. Callers check IsConfigured
// and fall back to attribute scoring when it is false.
type Provider interface {
	Name() string
	IsConfigured() bool
	Dimensions() int
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// NewProvider builds the provider named by cfg.Provider. A remote provider
// without an API key resolves to the unconfigured provider.
func NewProvider(cfg config.EmbeddingConfig) (Provider, error) {
	timeout := config.GetDuration(cfg.Timeout)
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return Unconfigured(ProviderOpenAI), nil
		}
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BaseURL:    cfg.BaseURL,
			Timeout:    timeout,
		}), nil
	case ProviderVoyage:
		if cfg.APIKey == "" {
			return Unconfigured(ProviderVoyage), nil
		}
		return NewVoyageProvider(VoyageConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BaseURL:    cfg.BaseURL,
		}, commonhttp.NewClient(timeout)), nil
	case ProviderHash:
		return NewHashProvider(cfg.Dimensions), nil
	case ProviderNone, "":
		return Unconfigured(ProviderNone), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

var (
	resolveOnce sync.Once
	resolved    Provider
	resolveErr  error
)

// Resolve returns the process-wide provider. The first call's configuration
// wins; changing provider requires a restart.
func Resolve(cfg config.EmbeddingConfig) (Provider, error) {
	resolveOnce.Do(func() {
		resolved, resolveErr = NewProvider(cfg)
	})
	return resolved, resolveErr
}

type unconfigured struct {
	name string
}

// Unconfigured returns a provider whose calls fail with ErrNotConfigured.
func Unconfigured(name string) Provider {
	return unconfigured{name: name}
}

func (u unconfigured) Name() string       { return u.name }
func (u unconfigured) IsConfigured() bool { return false }
func (u unconfigured) Dimensions() int    { return 0 }

func (u unconfigured) GenerateEmbedding(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("%w: %s", ErrNotConfigured, u.name)
}

func (u unconfigured) GenerateBatchEmbeddings(context.Context, []string) ([][]float32, error) {
	return nil, fmt.Errorf("%w: %s", ErrNotConfigured, u.name)
}

func checkBatch(vectors [][]float32, want, dims int) error {
	if len(vectors) != want {
		return fmt.Errorf("%w: got %d vectors for %d texts", ErrUnexpectedResponse, len(vectors), want)
	}
	if dims <= 0 {
		return nil
	}
	for i, v := range vectors {
		if len(v) != dims {
			return fmt.Errorf("%w: vector %d has %d dimensions, want %d", ErrDimensionMismatch, i, len(v), dims)
		}
	}
	return nil
}
