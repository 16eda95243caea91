package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const defaultHashDimensions = 256

// HashProvider embeds text locally by feature hashing lower-cased word
// tokens into a signed bag of words, L2-normalised. It needs no network and
// is deterministic, which makes it the provider for development and tests.
type HashProvider struct {
	dimensions int
}

func NewHashProvider(dimensions int) *HashProvider {
	if dimensions <= 0 {
		dimensions = defaultHashDimensions
	}
	return &HashProvider{dimensions: dimensions}
}

func (p *HashProvider) Name() string       { return ProviderHash }
func (p *HashProvider) IsConfigured() bool { return true }
func (p *HashProvider) Dimensions() int    { return p.dimensions }

func (p *HashProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.embed(text), nil
}

func (p *HashProvider) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.embed(t)
	}
	return out, nil
}

func (p *HashProvider) embed(text string) []float32 {
	vec := make([]float32, p.dimensions)

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(p.dimensions))
		if sum&(1<<63) != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}
