package findsimilarprofiles

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"match-workers/internal/common/config"
	apperrors "match-workers/internal/common/errors"
	"match-workers/internal/common/logger"
	"match-workers/internal/common/observability"
	"match-workers/internal/matching/embedding"
	"match-workers/internal/matching/itemset"
	"match-workers/internal/matching/scoring"
	"match-workers/internal/models"
	"match-workers/internal/store"
)

// ==========================
// Fakes
// ==========================

type fakeParticipants struct {
	byID map[string]models.Participant
}

func (f *fakeParticipants) LoadParticipant(_ context.Context, id string) (*models.Participant, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("participant %s: %w", id, store.ErrNotFound)
	}
	return &p, nil
}

func (f *fakeParticipants) LoadParticipants(_ context.Context, ids []string) ([]models.Participant, error) {
	var out []models.Participant
	for _, id := range ids {
		if p, ok := f.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeParticipants) ListParticipants(_ context.Context, exclude string, limit int) ([]models.Participant, error) {
	var out []models.Participant
	for _, id := range []string{"u1", "u2", "u3", "u4"} {
		if p, ok := f.byID[id]; ok && id != exclude {
			out = append(out, p)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeVectors struct {
	byID map[string]store.ProfileVector
}

func (f *fakeVectors) Get(_ context.Context, id string) (*store.ProfileVector, error) {
	v, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("embedding %s: %w", id, store.ErrNotFound)
	}
	return &v, nil
}

func (f *fakeVectors) ListComparable(_ context.Context, provider, model, exclude string) ([]store.ProfileVector, error) {
	var out []store.ProfileVector
	for _, id := range []string{"u1", "u2", "u3", "u4"} {
		v, ok := f.byID[id]
		if ok && id != exclude && v.Provider == provider && v.Model == model {
			out = append(out, v)
		}
	}
	return out, nil
}

func person(id, industry, title string) models.Participant {
	return models.Participant{
		UserID:  id,
		Record:  models.AttributeRecord{"industry": models.Scalar(industry), "leadershipLevel": models.Scalar("c-suite")},
		Profile: models.PublicProfile{UserID: id, Name: id, Industry: industry, Title: title},
	}
}

func people() *fakeParticipants {
	return &fakeParticipants{byID: map[string]models.Participant{
		"u1": person("u1", "technology", "CTO"),
		"u2": person("u2", "technology", "VP Engineering"),
		"u3": person("u3", "finance", "CFO"),
		"u4": person("u4", "healthcare", "Chief Medical Officer"),
	}}
}

type failingProvider struct{}

func (failingProvider) Name() string       { return embedding.ProviderHash }
func (failingProvider) IsConfigured() bool { return true }
func (failingProvider) Dimensions() int    { return 4 }

func (failingProvider) GenerateEmbedding(context.Context, string) ([]float32, error) {
	return nil, errors.New("503 upstream")
}

func (failingProvider) GenerateBatchEmbeddings(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("503 upstream")
}

type slowProvider struct{ failingProvider }

func (slowProvider) GenerateBatchEmbeddings(context.Context, []string) ([][]float32, error) {
	return nil, context.DeadlineExceeded
}

func vec(id string, values ...float32) store.ProfileVector {
	return store.ProfileVector{UserID: id, Provider: embedding.ProviderHash, Model: "fnv", Values: values}
}

func newHandler(t *testing.T, provider embedding.Provider, vectors VectorReader) *Handler {
	t.Helper()
	svc, err := embedding.NewService(provider, 16)
	require.NoError(t, err)

	cfg := LoadConfig(&config.Config{Embedding: config.EmbeddingConfig{Model: "fnv"}})
	h, err := NewHandler(cfg, Dependencies{
		Participants:  people(),
		Vectors:       vectors,
		Embeddings:    svc,
		Scorer:        scoring.NewScorer(itemset.MustDefaultTable(), scoring.DefaultPolicy()),
		Observability: observability.Noop(),
	}, logger.NewTestLogger(t))
	require.NoError(t, err)
	return h
}

// ==========================
// Embedding path
// ==========================

func TestExecute_RanksStoredVectors(t *testing.T) {
	vectors := &fakeVectors{byID: map[string]store.ProfileVector{
		"u1": vec("u1", 1, 0, 0, 0),
		"u2": vec("u2", 1, 0, 0, 0),
		"u3": vec("u3", 0.6, 0.8, 0, 0),
		"u4": vec("u4", 0, 1, 0, 0),
	}}
	h := newHandler(t, embedding.NewHashProvider(4), vectors)

	out, err := h.Execute(context.Background(), &Input{UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, SourceEmbedding, out.Source)
	require.Len(t, out.Results, 2)

	assert.Equal(t, "u2", out.Results[0].UserID)
	assert.InDelta(t, 1.0, out.Results[0].Similarity, 1e-6)
	assert.Equal(t, models.MatchTypeHighAffinity, out.Results[0].Type)

	assert.Equal(t, "u3", out.Results[1].UserID)
	assert.InDelta(t, 0.6, out.Results[1].Similarity, 1e-6)
	assert.Equal(t, models.MatchTypeStrategic, out.Results[1].Type)
	assert.Equal(t, "CFO", out.Results[1].Profile.Title)
}

func TestExecute_LimitAndThreshold(t *testing.T) {
	vectors := &fakeVectors{byID: map[string]store.ProfileVector{
		"u1": vec("u1", 1, 0),
		"u2": vec("u2", 1, 0),
		"u3": vec("u3", 0.6, 0.8),
		"u4": vec("u4", 0, 1),
	}}
	h := newHandler(t, embedding.NewHashProvider(2), vectors)
	anything := -1.0

	out, err := h.Execute(context.Background(), &Input{UserID: "u1", Limit: 3, MinSimilarity: &anything})
	require.NoError(t, err)
	assert.Len(t, out.Results, 3)

	out, err = h.Execute(context.Background(), &Input{UserID: "u1", Limit: 1, MinSimilarity: &anything})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "u2", out.Results[0].UserID)
}

func TestExecute_EmbedsQueryWhenNotStored(t *testing.T) {
	ctx := context.Background()
	provider := embedding.NewHashProvider(1024)
	ps := people()

	vectors := &fakeVectors{byID: map[string]store.ProfileVector{}}
	for _, id := range []string{"u2", "u3"} {
		v, err := provider.GenerateEmbedding(ctx, embedding.ProfileText(ps.byID[id].Profile))
		require.NoError(t, err)
		vectors.byID[id] = vec(id, v...)
	}
	h := newHandler(t, provider, vectors)
	anything := -1.0

	out, err := h.Execute(ctx, &Input{UserID: "u1", MinSimilarity: &anything})
	require.NoError(t, err)
	assert.Equal(t, SourceEmbedding, out.Source)
	require.Len(t, out.Results, 2)
	assert.Equal(t, "u2", out.Results[0].UserID, "shared industry and title words rank first")
}

func TestExecute_DimensionMismatch(t *testing.T) {
	vectors := &fakeVectors{byID: map[string]store.ProfileVector{
		"u1": vec("u1", 1, 0, 0),
		"u2": vec("u2", 1, 0),
	}}
	h := newHandler(t, embedding.NewHashProvider(3), vectors)

	_, err := h.Execute(context.Background(), &Input{UserID: "u1"})
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.CodeOf(err))
}

// ==========================
// Attribute fallback
// ==========================

func TestExecute_FallsBackToAttributes(t *testing.T) {
	tests := []struct {
		name     string
		provider embedding.Provider
		vectors  *fakeVectors
	}{
		{"provider not configured", embedding.Unconfigured(embedding.ProviderOpenAI), &fakeVectors{byID: map[string]store.ProfileVector{"u1": vec("u1", 1)}}},
		{"no comparable vectors", embedding.NewHashProvider(4), &fakeVectors{byID: map[string]store.ProfileVector{"u1": vec("u1", 1, 0, 0, 0)}}},
		{"provider fails", failingProvider{}, &fakeVectors{byID: map[string]store.ProfileVector{"u2": vec("u2", 1, 0, 0, 0)}}},
		{"provider times out", slowProvider{}, &fakeVectors{byID: map[string]store.ProfileVector{"u2": vec("u2", 1, 0, 0, 0)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(t, tt.provider, tt.vectors)

			out, err := h.Execute(context.Background(), &Input{UserID: "u1", Limit: 2})
			require.NoError(t, err)
			assert.Equal(t, SourceAttributes, out.Source)
			require.Len(t, out.Results, 2)
			assert.Equal(t, "u2", out.Results[0].UserID)
			assert.GreaterOrEqual(t, out.Results[0].Similarity, out.Results[1].Similarity)
		})
	}
}

func TestExecute_UnknownUser(t *testing.T) {
	h := newHandler(t, embedding.NewHashProvider(4), &fakeVectors{})
	_, err := h.Execute(context.Background(), &Input{UserID: "ghost"})
	assert.Equal(t, apperrors.ErrCodeProfileNotFound, apperrors.CodeOf(err))
}

func TestParseInput(t *testing.T) {
	h := newHandler(t, embedding.NewHashProvider(4), &fakeVectors{})

	in, err := h.parseInput(`{"userId":"u1","limit":5,"minSimilarity":0.2}`)
	require.NoError(t, err)
	assert.Equal(t, 5, in.Limit)
	require.NotNil(t, in.MinSimilarity)

	for _, raw := range []string{`{"limit":5}`, `{"userId":"u1","limit":0}`, `{"userId":"u1","minSimilarity":2}`} {
		_, err := h.parseInput(raw)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.CodeOf(err), raw)
	}
}
