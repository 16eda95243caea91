package selector

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"match-workers/internal/matching/itemset"
	"match-workers/internal/matching/scoring"
	"match-workers/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestSelector(t *testing.T) *Selector {
	t.Helper()
	table, err := itemset.DefaultTable()
	require.NoError(t, err)

	n := 0
	return New(
		scoring.NewScorer(table, scoring.DefaultPolicy()),
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("match-%d", n)
		}),
	)
}

func participant(id, industry, level string, extra ...string) models.Participant {
	rec := models.AttributeRecord{}
	if industry != "" {
		rec["industry"] = models.Scalar(industry)
	}
	if level != "" {
		rec["leadershipLevel"] = models.Scalar(level)
	}
	for i := 0; i+1 < len(extra); i += 2 {
		rec[extra[i]] = models.List(extra[i+1])
	}
	return models.Participant{
		UserID:  id,
		Record:  rec,
		Profile: models.PublicProfile{UserID: id, Name: "User " + id, Industry: industry, LeadershipLevel: level},
	}
}

func ids(matches []models.Match) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.MatchedUserID
	}
	return out
}

func baseUser() models.Participant {
	return participant("me", "technology", "vp", "priorities", "growth", "hobbies", "sailing")
}

// ==========================
// Selection
// ==========================

func TestSelect_ExcludesSelfAndExcludedIDs(t *testing.T) {
	s := newTestSelector(t)
	user := baseUser()
	pool := []models.Participant{
		user,
		participant("a", "technology", "vp"),
		participant("b", "technology", "vp"),
		participant("c", "technology", "vp"),
	}

	opts := DefaultOptions()
	opts.ExcludeIDs = []string{"b"}
	res := s.Select(user, pool, opts)

	got := ids(res.Matches)
	assert.NotContains(t, got, "me")
	assert.NotContains(t, got, "b")
	assert.ElementsMatch(t, []string{"a", "c"}, got)
	assert.Equal(t, 2, res.Considered)
}

func TestSelect_DropsBelowMinScoreEvenWhenBackfilling(t *testing.T) {
	s := newTestSelector(t)
	user := baseUser()
	pool := []models.Participant{
		participant("good", "technology", "vp"),
		participant("none-1", "", "", "hobbies", "knitting"),
		participant("none-2", "retail", "intern"),
		participant("none-3", "", ""),
	}

	res := s.Select(user, pool, DefaultOptions())
	assert.Equal(t, []string{"good"}, ids(res.Matches))
}

func TestSelect_RespectsCaps(t *testing.T) {
	s := newTestSelector(t)
	user := baseUser()

	var pool []models.Participant
	for i := 0; i < 10; i++ {
		pool = append(pool, participant(fmt.Sprintf("p%d", i), "technology", "vp"))
	}

	opts := DefaultOptions()
	opts.MaxHighAffinity = 2
	opts.MaxStrategic = 1
	res := s.Select(user, pool, opts)
	assert.Len(t, res.Matches, 3)

	res = s.Select(user, pool, DefaultOptions())
	assert.LessOrEqual(t, len(res.Matches), 6)
}

func TestSelect_ZeroDiversityCapUsesDefault(t *testing.T) {
	s := newTestSelector(t)
	user := baseUser()

	var pool []models.Participant
	for i := 0; i < 40; i++ {
		level := []string{"vp", "c-suite", "director", "founder"}[i%4]
		pool = append(pool, participant(fmt.Sprintf("p%02d", i), "technology", level, "priorities", "growth"))
	}

	opts := Options{MaxHighAffinity: 3, MaxStrategic: 3, MinScore: 0.15}
	res := s.Select(user, pool, opts)
	require.NotEmpty(t, res.Matches)
	assert.Equal(t, ids(s.Select(user, pool, DefaultOptions()).Matches), ids(res.Matches))
	assert.LessOrEqual(t, len(res.Matches), DefaultDiversityCap)
}

func TestSelect_DiversityPass(t *testing.T) {
	s := newTestSelector(t)
	user := baseUser()
	pool := []models.Participant{
		participant("a1", "technology", "vp", "priorities", "growth", "hobbies", "sailing"),
		participant("a2", "technology", "vp", "priorities", "growth", "hobbies", "sailing"),
		participant("a3", "technology", "vp", "priorities", "growth", "hobbies", "sailing"),
		participant("a4", "technology", "vp", "priorities", "growth", "hobbies", "sailing"),
		participant("b1", "finance", "vp", "priorities", "growth", "hobbies", "sailing"),
		participant("b2", "healthcare", "vp", "priorities", "growth", "hobbies", "sailing"),
		participant("b3", "consulting", "vp", "priorities", "growth", "hobbies", "sailing"),
		participant("b4", "technology", "director", "priorities", "growth", "hobbies", "sailing"),
	}

	opts := DefaultOptions()
	opts.MaxHighAffinity = 5
	opts.MaxStrategic = 5
	res := s.Select(user, pool, opts)

	require.Len(t, res.Matches, 6)
	assert.ElementsMatch(t, []string{"a1", "a2", "b1", "b2", "b3", "b4"}, ids(res.Matches))

	for i := 1; i < len(res.Matches); i++ {
		assert.GreaterOrEqual(t, res.Matches[i-1].Score, res.Matches[i].Score)
	}
}

func TestSelect_BuildsMatches(t *testing.T) {
	s := newTestSelector(t)
	user := baseUser()
	pool := []models.Participant{
		participant("tech", "technology", "vp"),
		participant("fin", "finance", ""),
	}

	res := s.Select(user, pool, DefaultOptions())
	require.Len(t, res.Matches, 2)

	byID := map[string]models.Match{}
	for _, m := range res.Matches {
		byID[m.MatchedUserID] = m
		assert.Equal(t, "me", m.UserID)
		assert.Equal(t, fixedNow, m.GeneratedAt)
		assert.GreaterOrEqual(t, m.Score, 0.0)
		assert.LessOrEqual(t, m.Score, 1.0)
		assert.LessOrEqual(t, len(m.Commonalities), 5)
		assert.NotEmpty(t, m.ConversationStarters)
		assert.LessOrEqual(t, len(m.ConversationStarters), 3)
		assert.False(t, m.Viewed)
		assert.False(t, m.Passed)
	}

	assert.Equal(t, models.MatchTypeHighAffinity, byID["tech"].Type)
	assert.Equal(t, "User tech", byID["tech"].MatchedProfile.Name)
	assert.Equal(t, models.MatchTypeStrategic, byID["fin"].Type)
	assert.Contains(t, byID["fin"].Commonalities[0].Description, "Complementary")

	assert.Equal(t, "match-1", res.Matches[0].ID)
	assert.Equal(t, 1, res.Metrics.HighAffinityCount)
	assert.Equal(t, 1, res.Metrics.StrategicCount)
}

func TestSelect_EmptyPool(t *testing.T) {
	s := newTestSelector(t)
	res := s.Select(baseUser(), nil, DefaultOptions())
	assert.Empty(t, res.Matches)
	assert.Equal(t, 0.0, res.Metrics.AverageScore)
	assert.Equal(t, 0, res.Considered)
}

func TestSelect_DuplicatePoolEntriesScoredOnce(t *testing.T) {
	s := newTestSelector(t)
	p := participant("dup", "technology", "vp")
	res := s.Select(baseUser(), []models.Participant{p, p}, DefaultOptions())
	assert.Equal(t, []string{"dup"}, ids(res.Matches))
}

func TestOptions_WithExclusionsCopies(t *testing.T) {
	base := DefaultOptions()
	base.ExcludeIDs = []string{"x"}
	ext := base.WithExclusions("y")
	assert.Equal(t, []string{"x"}, base.ExcludeIDs)
	assert.Equal(t, []string{"x", "y"}, ext.ExcludeIDs)
}

// ==========================
// Internal ordering
// ==========================

func sc(id string, total, affinity, strategic float64, industry string) scored {
	p := participant(id, industry, "vp")
	return scored{p: p, cand: scoring.Candidate{Total: total, Affinity: affinity, Strategic: strategic}}
}

func TestSortBy_KeyThenTotalThenID(t *testing.T) {
	xs := []scored{
		sc("c", 0.5, 0.9, 0, "a"),
		sc("b", 0.7, 0.9, 0, "b"),
		sc("a", 0.7, 0.9, 0, "c"),
		sc("d", 0.9, 0.95, 0, "d"),
	}
	sortBy(xs, func(x scored) float64 { return x.cand.Affinity })

	got := []string{xs[0].p.UserID, xs[1].p.UserID, xs[2].p.UserID, xs[3].p.UserID}
	assert.Equal(t, []string{"d", "a", "b", "c"}, got)
}

func TestDiversify_FillsWhenFewUniqueKeys(t *testing.T) {
	xs := []scored{
		sc("a", 0.9, 0, 0, "technology"),
		sc("b", 0.8, 0, 0, "technology"),
		sc("c", 0.7, 0, 0, "finance"),
	}
	out := diversify(xs, 6)
	require.Len(t, out, 3)
	assert.Equal(t, "a", out[0].p.UserID)

	out = diversify(xs, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].p.UserID)
	assert.Equal(t, "c", out[1].p.UserID)

	assert.Empty(t, diversify(xs, 0))
}
