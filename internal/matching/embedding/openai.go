package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	defaultOpenAIModel      = string(openai.EmbeddingModelTextEmbedding3Small)
	defaultOpenAIDimensions = 1536
)

type OpenAIConfig struct {
	APIKey     string
	Model      string
	Dimensions int
	BaseURL    string
	Timeout    time.Duration
}

type OpenAIProvider struct {
	client     openai.Client
	model      string
	dimensions int
}

// NewOpenAIProvider disables the SDK's internal retries; retry policy belongs
// to the job engine.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	dims := cfg.Dimensions
	if dims == 0 {
		dims = defaultOpenAIDimensions
	}

	return &OpenAIProvider{
		client:     openai.NewClient(opts...),
		model:      model,
		dimensions: dims,
	}
}

func (p *OpenAIProvider) Name() string       { return ProviderOpenAI }
func (p *OpenAIProvider) IsConfigured() bool { return true }
func (p *OpenAIProvider) Dimensions() int    { return p.dimensions }

func (p *OpenAIProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	out, err := p.GenerateBatchEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (p *OpenAIProvider) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model:      openai.EmbeddingModel(p.model),
		Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Dimensions: openai.Int(int64(p.dimensions)),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: openai: %v", ErrProviderFailed, err)
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, fmt.Errorf("%w: openai index %d out of range", ErrUnexpectedResponse, d.Index)
		}
		v := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			v[i] = float32(f)
		}
		out[d.Index] = v
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("%w: openai missing embedding %d", ErrUnexpectedResponse, i)
		}
	}

	if err := checkBatch(out, len(texts), p.dimensions); err != nil {
		return nil, err
	}
	return out, nil
}
