// Package selector picks a bounded, diversified set of matches for one user
// from a scored candidate pool. It performs no I/O.
package selector

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"match-workers/internal/matching/explain"
	"match-workers/internal/matching/scoring"
	"match-workers/internal/models"
)

// DefaultDiversityCap applies when Options.DiversityCap is not positive.
const DefaultDiversityCap = 6

type Options struct {
	MaxHighAffinity int
	MaxStrategic    int
	MinScore        float64
	ExcludeIDs      []string
	DiversityCap    int
}

func DefaultOptions() Options {
	return Options{
		MaxHighAffinity: 3,
		MaxStrategic:    3,
		MinScore:        0.15,
		DiversityCap:    DefaultDiversityCap,
	}
}

// WithExclusions returns a copy of o with ids appended to ExcludeIDs.
func (o Options) WithExclusions(ids ...string) Options {
	out := o
	out.ExcludeIDs = append(append([]string(nil), o.ExcludeIDs...), ids...)
	return out
}

type Result struct {
	Matches []models.Match        `json:"matches"`
	Metrics models.QualityMetrics `json:"metrics"`
	// Considered is the number of candidates scored after exclusions.
	Considered int `json:"considered"`
}

type Selector struct {
	scorer *scoring.Scorer
	now    func() time.Time
	newID  func() string
}

type Option func(*Selector)

func WithClock(now func() time.Time) Option {
	return func(s *Selector) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Selector) { s.newID = newID }
}

func New(scorer *scoring.Scorer, opts ...Option) *Selector {
	s := &Selector{
		scorer: scorer,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.NewString() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type scored struct {
	p    models.Participant
	cand scoring.Candidate
}

// Select scores pool against user and returns the chosen matches, best first.
func (s *Selector) Select(user models.Participant, pool []models.Participant, opts Options) Result {
	excluded := make(map[string]struct{}, len(opts.ExcludeIDs)+1)
	excluded[user.UserID] = struct{}{}
	for _, id := range opts.ExcludeIDs {
		excluded[id] = struct{}{}
	}

	var highAffinity, strategic []scored
	considered := 0
	for _, p := range pool {
		if _, skip := excluded[p.UserID]; skip {
			continue
		}
		excluded[p.UserID] = struct{}{}
		considered++

		c := s.scorer.Score(user.Record, p.Record)
		if c.Total < opts.MinScore {
			continue
		}
		if c.Type == models.MatchTypeStrategic {
			strategic = append(strategic, scored{p: p, cand: c})
		} else {
			highAffinity = append(highAffinity, scored{p: p, cand: c})
		}
	}

	sortBy(highAffinity, func(x scored) float64 { return x.cand.Affinity })
	sortBy(strategic, func(x scored) float64 { return x.cand.Strategic })

	haTake, haRest := split(highAffinity, opts.MaxHighAffinity)
	stTake, stRest := split(strategic, opts.MaxStrategic)

	target := max(opts.MaxHighAffinity, 0) + max(opts.MaxStrategic, 0)
	selected := make([]scored, 0, target)
	selected = append(selected, haTake...)
	selected = append(selected, stTake...)
	if len(selected) < target {
		rest := make([]scored, 0, len(haRest)+len(stRest))
		rest = append(rest, haRest...)
		rest = append(rest, stRest...)
		sortBy(rest, byTotal)
		for _, r := range rest {
			if len(selected) == target {
				break
			}
			selected = append(selected, r)
		}
	}

	diversityCap := opts.DiversityCap
	if diversityCap <= 0 {
		diversityCap = DefaultDiversityCap
	}
	final := diversify(selected, diversityCap)

	generatedAt := s.now()
	matches := make([]models.Match, 0, len(final))
	for _, f := range final {
		matches = append(matches, models.Match{
			ID:                   s.newID(),
			UserID:               user.UserID,
			MatchedUserID:        f.p.UserID,
			MatchedProfile:       f.p.Profile,
			Type:                 f.cand.Type,
			Commonalities:        f.cand.Commonalities,
			ConversationStarters: explain.ConversationStarters(f.cand.Commonalities, f.cand.Type),
			Score:                clamp01(f.cand.Total),
			GeneratedAt:          generatedAt,
		})
	}

	return Result{
		Matches:    matches,
		Metrics:    Quality(matches),
		Considered: considered,
	}
}

func byTotal(x scored) float64 { return x.cand.Total }

// sortBy orders by key desc, then total desc, then user id for stability.
func sortBy(xs []scored, key func(scored) float64) {
	sort.SliceStable(xs, func(i, j int) bool {
		ki, kj := key(xs[i]), key(xs[j])
		if ki != kj {
			return ki > kj
		}
		if xs[i].cand.Total != xs[j].cand.Total {
			return xs[i].cand.Total > xs[j].cand.Total
		}
		return xs[i].p.UserID < xs[j].p.UserID
	})
}

func split(xs []scored, n int) (take, rest []scored) {
	if n < 0 {
		n = 0
	}
	if n >= len(xs) {
		return xs, nil
	}
	return xs[:n], xs[n:]
}

// diversify keeps the best candidate per (industry, leadership level) up to
// limit, then fills any remaining slots by score regardless of key.
func diversify(xs []scored, limit int) []scored {
	ordered := append([]scored(nil), xs...)
	sortBy(ordered, byTotal)
	if limit <= 0 || len(ordered) == 0 {
		return nil
	}

	out := make([]scored, 0, min(limit, len(ordered)))
	used := make([]bool, len(ordered))
	seen := make(map[string]struct{}, len(ordered))

	for i, x := range ordered {
		if len(out) == limit {
			break
		}
		k := diversityKey(x.p)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		used[i] = true
		out = append(out, x)
	}

	for i, x := range ordered {
		if len(out) == limit {
			break
		}
		if !used[i] {
			out = append(out, x)
		}
	}

	sortBy(out, byTotal)
	return out
}

func diversityKey(p models.Participant) string {
	industry := p.Record.Get("industry").First()
	if industry == "" {
		industry = p.Profile.Industry
	}
	level := p.Record.Get("leadershipLevel").First()
	if level == "" {
		level = p.Profile.LeadershipLevel
	}
	return strings.ToLower(strings.TrimSpace(industry)) + "|" + strings.ToLower(strings.TrimSpace(level))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
