// Package explain renders scored attribute overlaps as human-readable
// commonalities and conversation starters.
package explain

import (
	"fmt"
	"sort"
	"strings"

	"match-workers/internal/matching/itemset"
	"match-workers/internal/models"
)

const (
	MaxCommonalities = 5
	// ComplementFactor discounts complementary pairs against exact matches.
	ComplementFactor = 0.8
	fallbackTemplate = "Shared: {value}"
)

// Pair is an item from one side and the complementary item it found on the
// other side.
type Pair struct {
	Item       itemset.Item
	Complement itemset.Item
}

// Commonalities describes shared items and complementary pairs, sorted by
// weight descending, de-duplicated case-insensitively by description and
// truncated to MaxCommonalities.
func Commonalities(shared []itemset.Item, pairs []Pair, table *itemset.Table) []models.Commonality {
	all := make([]models.Commonality, 0, len(shared)+len(pairs))

	for _, it := range shared {
		value := table.Display(it.Value)
		all = append(all, models.Commonality{
			Category:    it.Category,
			Description: render(templateFor(table, it.Attribute), value),
			Weight:      it.Weight,
			Topic:       value,
		})
	}

	for _, p := range pairs {
		mine := table.Display(p.Item.Value)
		theirs := table.Display(p.Complement.Value)

		var desc string
		if p.Item.Attribute == p.Complement.Attribute {
			desc = fmt.Sprintf("Complementary %s: %s and %s", labelFor(table, p.Item.Attribute), mine, theirs)
		} else {
			desc = fmt.Sprintf("Complementary strengths: %s and %s", mine, theirs)
		}
		all = append(all, models.Commonality{
			Category:    p.Item.Category,
			Description: desc,
			Weight:      p.Item.Weight * ComplementFactor,
			Topic:       theirs,
		})
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Weight > all[j].Weight
	})

	seen := make(map[string]struct{}, len(all))
	out := make([]models.Commonality, 0, MaxCommonalities)
	for _, c := range all {
		k := strings.ToLower(c.Description)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
		if len(out) == MaxCommonalities {
			break
		}
	}
	return out
}

func templateFor(table *itemset.Table, attribute string) string {
	if table != nil {
		if spec, ok := table.Spec(attribute); ok && spec.Template != "" {
			return spec.Template
		}
	}
	return fallbackTemplate
}

func labelFor(table *itemset.Table, attribute string) string {
	if table != nil {
		if spec, ok := table.Spec(attribute); ok {
			return spec.Label
		}
	}
	return attribute
}

func render(template, value string) string {
	return strings.ReplaceAll(template, "{value}", value)
}
