package itemset

import (
	"match-workers/internal/models"
)

// Item is one weighted attribute value.
type Item struct {
	Category  models.Category `json:"category"`
	Attribute string          `json:"attribute"`
	Value     string          `json:"value"`
	Weight    float64         `json:"weight"`
}

func (i Item) Key() string {
	return ItemKey(i.Attribute, i.Value)
}

type Extractor struct {
	table *Table
}

func NewExtractor(table *Table) *Extractor {
	return &Extractor{table: table}
}

func (e *Extractor) Table() *Table {
	return e.table
}

// Extract emits one item per non-blank value of each allow-listed key, in
// table order. Keys the table does not list are ignored.
func (e *Extractor) Extract(rec models.AttributeRecord) []Item {
	if len(rec) == 0 {
		return nil
	}

	var items []Item
	for _, key := range e.table.order {
		val, ok := rec[key]
		if !ok {
			continue
		}
		spec := e.table.specs[key]
		for _, v := range val.Values() {
			items = append(items, Item{
				Category:  spec.Category,
				Attribute: key,
				Value:     v,
				Weight:    spec.Weight,
			})
		}
	}
	return items
}

// Index keys items by Key. The first item wins on duplicates.
func Index(items []Item) map[string]Item {
	m := make(map[string]Item, len(items))
	for _, it := range items {
		if _, seen := m[it.Key()]; !seen {
			m[it.Key()] = it
		}
	}
	return m
}
