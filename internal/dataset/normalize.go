package dataset

import "sort"

// ReservedLabel is the label that always occupies category id 0 after
// normalization. This is a long-standing convention of the export format
// consumed downstream; do not change it without product confirmation.
const ReservedLabel = "vehicle"

// NormalizeCategoryIDs renumbers categories to a dense 0..N-1 id space.
// Categories sharing a name are merged into one id. An existing
// ReservedLabel category is pinned to id 0; the remaining names are
// assigned in sorted order. When no ReservedLabel category exists, the
// name that lands on id 0 is renamed to it in place (a destructive rename,
// not a swap), which keeps repeat calls idempotent.
//
// Every annotation's category_id and category_name are rewritten
// consistently. Returns the old-id -> new-id mapping; empty for an empty
// category table.
func (s *Store) NormalizeCategoryIDs() map[int]int {
	if len(s.categories) == 0 {
		return map[int]int{}
	}

	nameToIDs := make(map[string][]int)
	for id, name := range s.categories {
		nameToIDs[name] = append(nameToIDs[name], id)
	}

	names := make([]string, 0, len(nameToIDs))
	reserved := false
	for name := range nameToIDs {
		if name == ReservedLabel {
			reserved = true
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if reserved {
		names = append([]string{ReservedLabel}, names...)
	}

	newCategories := make(map[int]string, len(names))
	oldToNew := make(map[int]int, len(s.categories))
	for newID, name := range names {
		newCategories[newID] = name
		for _, oldID := range nameToIDs[name] {
			oldToNew[oldID] = newID
		}
	}

	if _, ok := newCategories[0]; ok {
		// Whatever occupies slot 0 becomes the reserved label.
		newCategories[0] = ReservedLabel
	} else {
		// Dense assignment always fills slot 0 for a non-empty table, so
		// this shift is a safety net only.
		shifted := map[int]string{0: ReservedLabel}
		for id, name := range newCategories {
			shifted[id+1] = name
		}
		newCategories = shifted
		for oldID := range oldToNew {
			oldToNew[oldID]++
		}
	}

	s.categories = newCategories

	for _, ann := range s.annotations {
		if newID, ok := oldToNew[ann.CategoryID]; ok {
			ann.CategoryID = newID
		}
	}
	s.recomputeDerived(s.annotations)

	return oldToNew
}
