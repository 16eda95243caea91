package generatematches

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"match-workers/internal/common/cache"
	"match-workers/internal/common/config"
	apperrors "match-workers/internal/common/errors"
	"match-workers/internal/common/logger"
	"match-workers/internal/matching/itemset"
	"match-workers/internal/matching/scoring"
	"match-workers/internal/matching/selector"
	"match-workers/internal/models"
	"match-workers/internal/store"
)

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

// ==========================
// Mocks
// ==========================

type mockParticipants struct{ mock.Mock }

func (m *mockParticipants) LoadParticipant(ctx context.Context, userID string) (*models.Participant, error) {
	args := m.Called(ctx, userID)
	p, _ := args.Get(0).(*models.Participant)
	return p, args.Error(1)
}

func (m *mockParticipants) ListParticipants(ctx context.Context, excludeUserID string, limit int) ([]models.Participant, error) {
	args := m.Called(ctx, excludeUserID, limit)
	ps, _ := args.Get(0).([]models.Participant)
	return ps, args.Error(1)
}

type mockDirectory struct{ mock.Mock }

func (m *mockDirectory) Candidates(ctx context.Context, user models.Participant, size int) ([]models.Participant, error) {
	args := m.Called(ctx, user, size)
	ps, _ := args.Get(0).([]models.Participant)
	return ps, args.Error(1)
}

type mockMatches struct{ mock.Mock }

func (m *mockMatches) ListCurrent(ctx context.Context, userID string) ([]models.Match, error) {
	args := m.Called(ctx, userID)
	ms, _ := args.Get(0).([]models.Match)
	return ms, args.Error(1)
}

func (m *mockMatches) ListHistory(ctx context.Context, userID string, since time.Time) ([]models.Match, error) {
	args := m.Called(ctx, userID, since)
	ms, _ := args.Get(0).([]models.Match)
	return ms, args.Error(1)
}

func (m *mockMatches) ReplaceForUser(ctx context.Context, userID string, matches []models.Match, now time.Time) error {
	return m.Called(ctx, userID, matches, now).Error(0)
}

// ==========================
// Helpers
// ==========================

func participant(id, industry, level string, hobbies ...string) models.Participant {
	rec := models.AttributeRecord{
		"industry":        models.Scalar(industry),
		"leadershipLevel": models.Scalar(level),
	}
	if len(hobbies) > 0 {
		rec["hobbies"] = models.List(hobbies...)
	}
	return models.Participant{
		UserID:  id,
		Record:  rec,
		Profile: models.PublicProfile{UserID: id, Name: "User " + id, Industry: industry},
	}
}

func pool() []models.Participant {
	return []models.Participant{
		participant("u2", "technology", "c-suite", "climbing"),
		participant("u3", "technology", "director", "chess"),
		participant("u4", "finance", "vp"),
		participant("u5", "healthcare", "c-suite", "climbing", "chess"),
	}
}

type fixture struct {
	handler      *Handler
	participants *mockParticipants
	directory    *mockDirectory
	matches      *mockMatches
	cache        *cache.Cache
}

func newFixture(t *testing.T, withDirectory bool) *fixture {
	t.Helper()

	scorer := scoring.NewScorer(itemset.MustDefaultTable(), scoring.DefaultPolicy())
	n := 0
	sel := selector.New(scorer,
		selector.WithClock(func() time.Time { return fixedNow }),
		selector.WithIDGenerator(func() string { n++; return fmt.Sprintf("m%d", n) }),
	)

	f := &fixture{
		participants: &mockParticipants{},
		directory:    &mockDirectory{},
		matches:      &mockMatches{},
		cache:        cache.New(cache.NewMemoryStore(), cache.DefaultTTLs(), logger.NewTestLogger(t)),
	}
	deps := Dependencies{
		Participants: f.participants,
		Matches:      f.matches,
		Cache:        f.cache,
		Selector:     sel,
		Clock:        func() time.Time { return fixedNow },
	}
	if withDirectory {
		deps.Directory = f.directory
	}

	h, err := NewHandler(LoadConfig(nil), deps, logger.NewTestLogger(t))
	require.NoError(t, err)
	f.handler = h
	return f
}

func matchedIDs(ms []models.Match) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.MatchedUserID
	}
	return out
}

// ==========================
// Execute
// ==========================

func TestExecute_RefreshGeneratesFromDatabase(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	user := participant("u1", "technology", "c-suite", "climbing")

	prior := []models.Match{
		{MatchedUserID: "u3", GeneratedAt: fixedNow.AddDate(0, 0, -5)},
		{MatchedUserID: "u4", GeneratedAt: fixedNow.AddDate(0, 0, -2), Passed: true},
	}

	f.participants.On("LoadParticipant", mock.Anything, "u1").Return(&user, nil)
	f.participants.On("ListParticipants", mock.Anything, "u1", 500).Return(pool(), nil)
	f.matches.On("ListHistory", mock.Anything, "u1", fixedNow.AddDate(0, 0, -31)).Return(prior, nil)
	f.matches.On("ReplaceForUser", mock.Anything, "u1", mock.AnythingOfType("[]models.Match"), fixedNow).Return(nil)

	out, err := f.handler.Execute(ctx, &Input{UserID: "u1", Refresh: true})
	require.NoError(t, err)

	assert.Equal(t, SourceGenerated, out.Source)
	assert.Equal(t, "database", out.CandidateSource)
	assert.False(t, out.FromCache)
	assert.Equal(t, fixedNow, out.GeneratedAt)
	assert.NotEmpty(t, out.Matches)
	assert.NotContains(t, matchedIDs(out.Matches), "u3", "recent match is excluded")
	assert.NotContains(t, matchedIDs(out.Matches), "u1")
	for _, m := range out.Matches {
		assert.Equal(t, "u1", m.UserID)
		assert.GreaterOrEqual(t, m.Score, 0.15)
		assert.LessOrEqual(t, len(m.ConversationStarters), 3)
	}

	has, err := f.cache.Has(ctx, cache.MatchesKey("u1"))
	require.NoError(t, err)
	assert.True(t, has)

	f.participants.AssertExpectations(t)
	f.matches.AssertExpectations(t)
}

func TestExecute_ServesCachedMatches(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	cached := cachedMatches{
		Matches:     []models.Match{{ID: "m9", UserID: "u1", MatchedUserID: "u7", Score: 0.5}},
		GeneratedAt: fixedNow.Add(-time.Minute),
	}
	require.NoError(t, f.cache.Set(ctx, cache.MatchesKey("u1"), cached, time.Minute))

	out, err := f.handler.Execute(ctx, &Input{UserID: "u1"})
	require.NoError(t, err)
	assert.True(t, out.FromCache)
	assert.Equal(t, SourceCache, out.Source)
	assert.Equal(t, []string{"u7"}, matchedIDs(out.Matches))

	f.participants.AssertNotCalled(t, "LoadParticipant", mock.Anything, mock.Anything)
	f.matches.AssertNotCalled(t, "ListCurrent", mock.Anything, mock.Anything)
}

func TestExecute_ServesStoredMatchesOnCacheMiss(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	stored := []models.Match{
		{ID: "m1", UserID: "u1", MatchedUserID: "u2", Type: models.MatchTypeHighAffinity, Score: 0.6, GeneratedAt: fixedNow.Add(-time.Hour)},
		{ID: "m2", UserID: "u1", MatchedUserID: "u4", Type: models.MatchTypeStrategic, Score: 0.4, GeneratedAt: fixedNow.Add(-time.Hour)},
	}
	f.matches.On("ListCurrent", mock.Anything, "u1").Return(stored, nil)

	out, err := f.handler.Execute(ctx, &Input{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, SourceStored, out.Source)
	assert.InDelta(t, 0.5, out.Metrics.AverageScore, 1e-9)
	assert.Equal(t, 1, out.Metrics.HighAffinityCount)

	has, err := f.cache.Has(ctx, cache.MatchesKey("u1"))
	require.NoError(t, err)
	assert.True(t, has, "stored matches are cached")
}

func TestExecute_GeneratesWhenNothingStored(t *testing.T) {
	f := newFixture(t, true)
	user := participant("u1", "technology", "c-suite")

	f.matches.On("ListCurrent", mock.Anything, "u1").Return([]models.Match(nil), nil)
	f.participants.On("LoadParticipant", mock.Anything, "u1").Return(&user, nil)
	f.directory.On("Candidates", mock.Anything, user, 500).Return(pool(), nil)
	f.matches.On("ListHistory", mock.Anything, "u1", mock.Anything).Return([]models.Match(nil), nil)
	f.matches.On("ReplaceForUser", mock.Anything, "u1", mock.Anything, fixedNow).Return(nil)

	out, err := f.handler.Execute(context.Background(), &Input{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "directory", out.CandidateSource)
	f.participants.AssertNotCalled(t, "ListParticipants", mock.Anything, mock.Anything, mock.Anything)
}

func TestExecute_DirectoryFailureFallsBackToDatabase(t *testing.T) {
	f := newFixture(t, true)
	user := participant("u1", "technology", "c-suite")

	f.participants.On("LoadParticipant", mock.Anything, "u1").Return(&user, nil)
	f.directory.On("Candidates", mock.Anything, user, 500).Return(nil, store.ErrDirectoryUnavailable)
	f.participants.On("ListParticipants", mock.Anything, "u1", 500).Return(pool(), nil)
	f.matches.On("ListHistory", mock.Anything, "u1", mock.Anything).Return([]models.Match(nil), nil)
	f.matches.On("ReplaceForUser", mock.Anything, "u1", mock.Anything, fixedNow).Return(nil)

	out, err := f.handler.Execute(context.Background(), &Input{UserID: "u1", Refresh: true})
	require.NoError(t, err)
	assert.Equal(t, "database", out.CandidateSource)
}

func TestExecute_InputOverrides(t *testing.T) {
	f := newFixture(t, false)
	user := participant("u1", "technology", "c-suite", "climbing")
	one := 1
	zero := 0

	f.participants.On("LoadParticipant", mock.Anything, "u1").Return(&user, nil)
	f.participants.On("ListParticipants", mock.Anything, "u1", 500).Return(pool(), nil)
	f.matches.On("ListHistory", mock.Anything, "u1", mock.Anything).Return([]models.Match(nil), nil)
	f.matches.On("ReplaceForUser", mock.Anything, "u1", mock.Anything, fixedNow).Return(nil)

	out, err := f.handler.Execute(context.Background(), &Input{
		UserID:          "u1",
		Refresh:         true,
		MaxHighAffinity: &one,
		MaxStrategic:    &zero,
		ExcludeIDs:      []string{"u2"},
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(out.Matches), 1)
	assert.NotContains(t, matchedIDs(out.Matches), "u2")
}

func TestExecute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(f *fixture)
		wantCode apperrors.ErrorCode
	}{
		{
			name: "unknown user",
			setup: func(f *fixture) {
				f.participants.On("LoadParticipant", mock.Anything, "u1").
					Return(nil, fmt.Errorf("participant u1: %w", store.ErrNotFound))
			},
			wantCode: apperrors.ErrCodeProfileNotFound,
		},
		{
			name: "participant query fails",
			setup: func(f *fixture) {
				f.participants.On("LoadParticipant", mock.Anything, "u1").Return(nil, errors.New("conn reset"))
			},
			wantCode: apperrors.ErrCodeQueryExecutionFailed,
		},
		{
			name: "participant query times out",
			setup: func(f *fixture) {
				f.participants.On("LoadParticipant", mock.Anything, "u1").Return(nil, context.DeadlineExceeded)
			},
			wantCode: apperrors.ErrCodeQueryTimeout,
		},
		{
			name: "persist fails",
			setup: func(f *fixture) {
				user := participant("u1", "technology", "c-suite")
				f.participants.On("LoadParticipant", mock.Anything, "u1").Return(&user, nil)
				f.participants.On("ListParticipants", mock.Anything, "u1", 500).Return(pool(), nil)
				f.matches.On("ListHistory", mock.Anything, "u1", mock.Anything).Return([]models.Match(nil), nil)
				f.matches.On("ReplaceForUser", mock.Anything, "u1", mock.Anything, fixedNow).Return(errors.New("disk full"))
			},
			wantCode: apperrors.ErrCodeDatabaseInsertFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)
			tt.setup(f)

			_, err := f.handler.Execute(context.Background(), &Input{UserID: "u1", Refresh: true})
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
		})
	}
}

// ==========================
// Input parsing and config
// ==========================

func TestParseInput(t *testing.T) {
	f := newFixture(t, false)

	input, err := f.handler.parseInput(`{"userId":"u1","refresh":true,"minScore":0.3}`)
	require.NoError(t, err)
	assert.Equal(t, "u1", input.UserID)
	assert.True(t, input.Refresh)
	require.NotNil(t, input.MinScore)
	assert.Equal(t, 0.3, *input.MinScore)

	for _, raw := range []string{`{}`, `{"userId":""}`, `not json`, `{"userId":"u1","minScore":2}`} {
		_, err := f.handler.parseInput(raw)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.CodeOf(err), raw)
	}
}

func TestNewHandler_RequiresDependencies(t *testing.T) {
	_, err := NewHandler(LoadConfig(nil), Dependencies{}, logger.NewNoOpLogger())
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	cfg := &config.Config{
		Workers: map[string]config.WorkerConfig{TaskType: {Timeout: 5000}},
		Matching: config.MatchingConfig{
			MaxHighAffinity:   2,
			MaxStrategic:      4,
			MinScore:          0.2,
			DiversityCap:      5,
			RecencyWindowDays: 14,
			CandidatePoolSize: 100,
		},
	}
	c := LoadConfig(cfg)
	assert.Equal(t, 5*time.Second, c.Timeout)
	assert.Equal(t, 100, c.CandidatePoolSize)
	assert.Equal(t, 14, c.RecencyWindowDays)
	assert.Equal(t, 2, c.Selection.MaxHighAffinity)
	assert.Equal(t, 4, c.Selection.MaxStrategic)
	assert.Equal(t, 0.2, c.Selection.MinScore)
	assert.Equal(t, 5, c.Selection.DiversityCap)

	d := LoadConfig(nil)
	assert.Equal(t, 30*time.Second, d.Timeout)
	assert.Equal(t, selector.DefaultOptions(), d.Selection)
}
