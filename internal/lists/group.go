package lists

import (
	"sort"

	"github.com/gabai/gabai/internal/storage"
)

// Uncategorized labels items stored without a category.
const Uncategorized = "Uncategorized"

// Group is one category section of a list.
type Group struct {
	Category string             `json:"category"`
	Items    []storage.ListItem `json:"items"`
}

// GroupItems groups items by category in the list's taxonomy order. Categories
// outside the taxonomy follow, alphabetically. Within a group incomplete
// items come first, then by position. Empty groups are omitted.
func GroupItems(list storage.SmartList, items []storage.ListItem) []Group {
	byCat := make(map[string][]storage.ListItem)
	for _, it := range items {
		cat := it.Category
		if cat == "" {
			cat = Uncategorized
		}
		byCat[cat] = append(byCat[cat], it)
	}

	var order []string
	known := make(map[string]bool, len(list.Categories))
	for _, c := range list.Categories {
		if known[c] {
			continue
		}
		known[c] = true
		if _, ok := byCat[c]; ok {
			order = append(order, c)
		}
	}
	var extra []string
	for c := range byCat {
		if !known[c] {
			extra = append(extra, c)
		}
	}
	sort.Strings(extra)
	order = append(order, extra...)

	groups := make([]Group, 0, len(order))
	for _, c := range order {
		g := byCat[c]
		sort.SliceStable(g, func(i, j int) bool {
			if g[i].Completed != g[j].Completed {
				return !g[i].Completed
			}
			return g[i].Position < g[j].Position
		})
		groups = append(groups, Group{Category: c, Items: g})
	}
	return groups
}
