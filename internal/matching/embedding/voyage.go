package embedding

import (
	"context"
	"errors"
	"fmt"
	"sort"

	commonhttp "match-workers/internal/common/http"
)

const (
	voyageAPIURL        = "https://api.voyageai.com/v1/embeddings"
	defaultVoyageModel  = "voyage-3.5"
	voyageDefaultDims   = 1024
	voyageLiteDims      = 512
	voyageMaxBatchInput = 128
)

type VoyageConfig struct {
	APIKey     string
	Model      string
	Dimensions int
	BaseURL    string
}

type voyageRequest struct {
	Input           []string `json:"input"`
	Model           string   `json:"model"`
	InputType       string   `json:"input_type,omitempty"`
	OutputDimension int      `json:"output_dimension,omitempty"`
}

type voyageResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

type VoyageProvider struct {
	http       *commonhttp.Client
	apiKey     string
	model      string
	dimensions int
	url        string
	explicit   bool
}

func NewVoyageProvider(cfg VoyageConfig, client *commonhttp.Client) *VoyageProvider {
	model := cfg.Model
	if model == "" {
		model = defaultVoyageModel
	}
	dims := cfg.Dimensions
	explicit := dims > 0
	if !explicit {
		dims = voyageDefaultDims
		if model == "voyage-3.5-lite" {
			dims = voyageLiteDims
		}
	}
	url := cfg.BaseURL
	if url == "" {
		url = voyageAPIURL
	}
	return &VoyageProvider{
		http:       client,
		apiKey:     cfg.APIKey,
		model:      model,
		dimensions: dims,
		url:        url,
		explicit:   explicit,
	}
}

func (p *VoyageProvider) Name() string       { return ProviderVoyage }
func (p *VoyageProvider) IsConfigured() bool { return true }
func (p *VoyageProvider) Dimensions() int    { return p.dimensions }

func (p *VoyageProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	out, err := p.GenerateBatchEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// GenerateBatchEmbeddings splits texts into requests of at most 128 inputs.
func (p *VoyageProvider) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += voyageMaxBatchInput {
		end := min(start+voyageMaxBatchInput, len(texts))
		batch, err := p.embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}

	if err := checkBatch(out, len(texts), p.dimensions); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *VoyageProvider) embed(ctx context.Context, texts []string) ([][]float32, error) {
	req := voyageRequest{
		Input:     texts,
		Model:     p.model,
		InputType: "document",
	}
	if p.explicit {
		req.OutputDimension = p.dimensions
	}

	var resp voyageResponse
	err := p.http.PostJSON(ctx, p.url, map[string]string{
		"Authorization": "Bearer " + p.apiKey,
	}, req, &resp)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var statusErr *commonhttp.StatusError
		if errors.As(err, &statusErr) {
			return nil, fmt.Errorf("%w: voyage status %d", ErrProviderFailed, statusErr.StatusCode)
		}
		return nil, fmt.Errorf("%w: voyage: %v", ErrProviderFailed, err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: voyage returned %d embeddings for %d texts", ErrUnexpectedResponse, len(resp.Data), len(texts))
	}
	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}
