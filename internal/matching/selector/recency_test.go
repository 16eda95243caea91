package selector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"match-workers/internal/models"
)

func prior(matched string, age time.Duration, passed bool) models.Match {
	return models.Match{
		UserID:        "me",
		MatchedUserID: matched,
		GeneratedAt:   fixedNow.Add(-age),
		Passed:        passed,
	}
}

func TestRecentExclusions(t *testing.T) {
	day := 24 * time.Hour

	tests := []struct {
		name    string
		match   models.Match
		exclude bool
	}{
		{"fresh", prior("u", 2*day, false), true},
		{"exactly thirty days", prior("u", 30*day, false), true},
		{"thirty and a half days", prior("u", 30*day+12*time.Hour, false), true},
		{"thirty one days", prior("u", 31*day, false), false},
		{"old", prior("u", 90*day, false), false},
		{"passed recently", prior("u", 1*day, true), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RecentExclusions([]models.Match{tt.match}, fixedNow, DefaultRecencyWindowDays)
			if tt.exclude {
				assert.Equal(t, []string{"u"}, got)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestRecentExclusions_Dedupes(t *testing.T) {
	got := RecentExclusions([]models.Match{
		prior("a", time.Hour, false),
		prior("a", 2*time.Hour, false),
		prior("b", time.Hour, false),
	}, fixedNow, 30)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestRefresh_RecencyFeedsSelection(t *testing.T) {
	s := newTestSelector(t)
	user := baseUser()
	pool := []models.Participant{
		participant("recent", "technology", "vp"),
		participant("dismissed", "technology", "vp"),
		participant("stale", "technology", "vp"),
	}
	history := []models.Match{
		prior("recent", 3*24*time.Hour, false),
		prior("dismissed", 3*24*time.Hour, true),
		prior("stale", 40*24*time.Hour, false),
	}

	opts := DefaultOptions().WithExclusions(RecentExclusions(history, fixedNow, 30)...)
	res := s.Select(user, pool, opts)
	require.Len(t, res.Matches, 2)
	assert.ElementsMatch(t, []string{"dismissed", "stale"}, ids(res.Matches))
}

func TestQuality(t *testing.T) {
	matches := []models.Match{
		{Score: 0.5, Type: models.MatchTypeHighAffinity, Commonalities: []models.Commonality{
			{Category: models.CategoryProfessional}, {Category: models.CategoryHobby},
		}},
		{Score: 0.7, Type: models.MatchTypeStrategic, Commonalities: []models.Commonality{
			{Category: models.CategoryProfessional},
		}},
	}

	q := Quality(matches)
	assert.InDelta(t, 0.6, q.AverageScore, 1e-9)
	assert.Equal(t, 1, q.HighAffinityCount)
	assert.Equal(t, 1, q.StrategicCount)
	assert.Equal(t, 2, q.CategoryHistogram[models.CategoryProfessional])
	assert.Equal(t, 1, q.CategoryHistogram[models.CategoryHobby])

	empty := Quality(nil)
	assert.Equal(t, 0.0, empty.AverageScore)
	assert.NotNil(t, empty.CategoryHistogram)
}
