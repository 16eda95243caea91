package embedding

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"match-workers/internal/common/metrics"
)

const defaultMemoSize = 2048

// Service fronts a Provider with a bounded text->vector memo and ranks
// candidate vectors.
type Service struct {
	provider Provider
	memo     *lru.Cache[string, []float32]
}

func NewService(provider Provider, memoSize int) (*Service, error) {
	if memoSize <= 0 {
		memoSize = defaultMemoSize
	}
	memo, err := lru.New[string, []float32](memoSize)
	if err != nil {
		return nil, fmt.Errorf("create embedding memo: %w", err)
	}
	return &Service{provider: provider, memo: memo}, nil
}

func (s *Service) Provider() Provider {
	return s.provider
}

func (s *Service) IsConfigured() bool {
	return s.provider != nil && s.provider.IsConfigured()
}

// Embed returns the vector for one text.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in one provider call, sending only texts missing
// from the memo. Blank texts get a zero vector without a provider call.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if !s.IsConfigured() {
		name := ProviderNone
		if s.provider != nil {
			name = s.provider.Name()
		}
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, name)
	}

	out := make([][]float32, len(texts))
	var pending []string
	pendingIdx := map[string][]int{}

	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			out[i] = make([]float32, s.provider.Dimensions())
			continue
		}
		if v, ok := s.memo.Get(t); ok {
			out[i] = v
			continue
		}
		if _, queued := pendingIdx[t]; !queued {
			pending = append(pending, t)
		}
		pendingIdx[t] = append(pendingIdx[t], i)
	}

	if len(pending) == 0 {
		return out, nil
	}

	name := s.provider.Name()
	vectors, err := s.provider.GenerateBatchEmbeddings(ctx, pending)
	if err != nil {
		metrics.EmbeddingRequests.WithLabelValues(name, statusOf(err)).Inc()
		return nil, err
	}
	if err := checkBatch(vectors, len(pending), s.provider.Dimensions()); err != nil {
		metrics.EmbeddingRequests.WithLabelValues(name, "invalid").Inc()
		return nil, err
	}
	metrics.EmbeddingRequests.WithLabelValues(name, "success").Inc()
	metrics.EmbeddingTexts.WithLabelValues(name).Add(float64(len(pending)))

	for i, t := range pending {
		s.memo.Add(t, vectors[i])
		for _, idx := range pendingIdx[t] {
			out[idx] = vectors[i]
		}
	}
	return out, nil
}

func statusOf(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

// Vector is a stored embedding for one user.
type Vector struct {
	UserID string
	Values []float32
}

type Similar struct {
	UserID     string  `json:"userId"`
	Similarity float64 `json:"similarity"`
}

// RankSimilar scores candidates against query and returns those with
// similarity >= minSimilarity, best first, at most limit (0 = no limit).
// The first dimension mismatch aborts ranking.
func RankSimilar(query []float32, candidates []Vector, minSimilarity float64, limit int) ([]Similar, error) {
	out := make([]Similar, 0, len(candidates))
	for _, c := range candidates {
		sim, err := CosineSimilarity(query, c.Values)
		if err != nil {
			return nil, fmt.Errorf("user %s: %w", c.UserID, err)
		}
		if sim < minSimilarity {
			continue
		}
		out = append(out, Similar{UserID: c.UserID, Similarity: sim})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].UserID < out[j].UserID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
