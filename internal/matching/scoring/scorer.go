// Package scoring computes affinity and strategic compatibility between two
// questionnaire records.
package scoring

import (
	"match-workers/internal/matching/explain"
	"match-workers/internal/matching/itemset"
	"match-workers/internal/models"
)

// Policy holds the blending and classification constants.
type Policy struct {
	AffinityWeight   float64
	StrategicWeight  float64
	ComplementFactor float64
	// Classify: affinity > strategic*HighAffinityRatio -> high-affinity,
	// else strategic >= affinity*StrategicRatio -> strategic.
	HighAffinityRatio float64
	StrategicRatio    float64
}

func DefaultPolicy() Policy {
	return Policy{
		AffinityWeight:    0.6,
		StrategicWeight:   0.4,
		ComplementFactor:  explain.ComplementFactor,
		HighAffinityRatio: 1.3,
		StrategicRatio:    0.8,
	}
}

// Candidate is one scored pairing.
type Candidate struct {
	Total         float64              `json:"totalScore"`
	Affinity      float64              `json:"affinityScore"`
	Strategic     float64              `json:"strategicScore"`
	Commonalities []models.Commonality `json:"commonalities"`
	Type          models.MatchType     `json:"matchType"`
}

type Scorer struct {
	extractor *itemset.Extractor
	policy    Policy
}

func NewScorer(table *itemset.Table, policy Policy) *Scorer {
	return &Scorer{
		extractor: itemset.NewExtractor(table),
		policy:    policy,
	}
}

func (s *Scorer) Policy() Policy {
	return s.policy
}

func (s *Scorer) Table() *itemset.Table {
	return s.extractor.Table()
}

// Score extracts both records and returns the blended candidate.
func (s *Scorer) Score(a, b models.AttributeRecord) Candidate {
	return s.ScoreItems(s.extractor.Extract(a), s.extractor.Extract(b))
}

func (s *Scorer) ScoreItems(a, b []itemset.Item) Candidate {
	cmp := s.compare(a, b)
	c := Candidate{
		Affinity:  cmp.affinity,
		Strategic: cmp.strategic,
		Total:     s.policy.AffinityWeight*cmp.affinity + s.policy.StrategicWeight*cmp.strategic,
	}
	c.Type = s.policy.Classify(c.Affinity, c.Strategic)
	c.Commonalities = explain.Commonalities(cmp.shared, cmp.pairs, s.Table())
	return c
}

// Affinity is the weighted Jaccard index over item keys.
func (s *Scorer) Affinity(a, b []itemset.Item) float64 {
	return s.compare(a, b).affinity
}

// Strategic is earned/eligible complement weight, where each item of a with
// complement entries is eligible and earns weight*ComplementFactor when b
// holds any of its complements.
func (s *Scorer) Strategic(a, b []itemset.Item) float64 {
	return s.compare(a, b).strategic
}

type comparison struct {
	affinity  float64
	strategic float64
	shared    []itemset.Item
	pairs     []explain.Pair
}

func (s *Scorer) compare(a, b []itemset.Item) comparison {
	var out comparison

	idxB := itemset.Index(b)
	uniqA := unique(a)

	var total, matched float64
	seenA := make(map[string]struct{}, len(uniqA))
	for _, it := range uniqA {
		k := it.Key()
		seenA[k] = struct{}{}
		total += it.Weight
		if _, ok := idxB[k]; ok {
			matched += it.Weight
			out.shared = append(out.shared, it)
		}
	}
	for _, it := range unique(b) {
		if _, ok := seenA[it.Key()]; !ok {
			total += it.Weight
		}
	}
	if total > 0 {
		out.affinity = matched / total
	}

	table := s.Table()
	var eligible, earned float64
	for _, it := range uniqA {
		targets := table.Complements(it.Key())
		if len(targets) == 0 {
			continue
		}
		eligible += it.Weight
		for _, target := range targets {
			if other, ok := idxB[target]; ok {
				earned += it.Weight * s.policy.ComplementFactor
				out.pairs = append(out.pairs, explain.Pair{Item: it, Complement: other})
				break
			}
		}
	}
	if eligible > 0 {
		out.strategic = earned / eligible
	}

	return out
}

// unique drops repeated keys, keeping the first occurrence and order.
func unique(items []itemset.Item) []itemset.Item {
	seen := make(map[string]struct{}, len(items))
	out := make([]itemset.Item, 0, len(items))
	for _, it := range items {
		k := it.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out
}

// Classify favours high-affinity unless the strategic signal is clearly
// comparable.
func (p Policy) Classify(affinity, strategic float64) models.MatchType {
	if affinity > strategic*p.HighAffinityRatio {
		return models.MatchTypeHighAffinity
	}
	if strategic >= affinity*p.StrategicRatio {
		return models.MatchTypeStrategic
	}
	return models.MatchTypeHighAffinity
}

// Classify uses the default policy ratios.
func Classify(affinity, strategic float64) models.MatchType {
	return DefaultPolicy().Classify(affinity, strategic)
}
