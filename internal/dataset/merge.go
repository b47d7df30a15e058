package dataset

import (
	"sort"
	"strconv"
)

// Merge reconciles another store into this one, remapping ids. Categories
// are unioned by name: two differently numbered categories with the same
// name converge onto one target category. Images and annotations receive
// fresh sequential ids; exclusion marks, source tags, and duplicate-group
// membership carry over under the remapped ids. No-op when other is nil
// or has no images.
func (s *Store) Merge(other *Store) {
	if other == nil || len(other.images) == 0 {
		return
	}

	catMap := s.mergeCategories(other)

	// Images get new sequential ids starting after the current maximum.
	nextImgID := 0
	for id := range s.images {
		if id >= nextImgID {
			nextImgID = id + 1
		}
	}
	imgMap := make(map[int]int, len(other.images))
	for _, oldID := range sortedImageIDs(other.images) {
		img := *other.images[oldID]
		img.ID = nextImgID
		imgMap[oldID] = nextImgID
		s.images[nextImgID] = &img
		if _, marked := other.excluded[oldID]; marked {
			s.excluded[nextImgID] = struct{}{}
		}
		nextImgID++
	}

	for name, members := range other.sources {
		target, ok := s.sources[name]
		if !ok {
			target = make(map[int]struct{}, len(members))
			s.sources[name] = target
		}
		for oldID := range members {
			if newID, ok := imgMap[oldID]; ok {
				target[newID] = struct{}{}
			}
		}
	}

	for _, group := range other.dupGroups {
		remapped := make(map[int]struct{}, len(group))
		for oldID := range group {
			if newID, ok := imgMap[oldID]; ok {
				remapped[newID] = struct{}{}
			}
		}
		if len(remapped) > 1 {
			s.dupGroups = append(s.dupGroups, remapped)
		}
	}

	nextAnnID := 0
	for _, ann := range s.annotations {
		if ann.ID >= nextAnnID {
			nextAnnID = ann.ID + 1
		}
	}
	start := len(s.annotations)
	for _, ann := range other.annotations {
		newImgID, ok := imgMap[ann.ImageID]
		if !ok {
			// Orphan annotations are filtered, never reattached.
			continue
		}
		cp := *ann
		cp.ID = nextAnnID
		cp.ImageID = newImgID
		cp.CategoryID = catMap[ann.CategoryID]
		nextAnnID++
		s.annotations = append(s.annotations, &cp)
	}
	s.recomputeDerived(s.annotations[start:])
}

// mergeCategories unions other's categories into s by name and returns the
// old-id -> new-id mapping for other's annotations. Stores that carry
// annotations but no explicit categories get stringified ids synthesized
// first, on both sides.
func (s *Store) mergeCategories(other *Store) map[int]int {
	if len(s.categories) == 0 && len(s.annotations) > 0 {
		for _, ann := range s.annotations {
			s.categories[ann.CategoryID] = strconv.Itoa(ann.CategoryID)
		}
	}

	nextCatID := 0
	nameToID := make(map[string]int, len(s.categories))
	for id, name := range s.categories {
		nameToID[name] = id
		if id >= nextCatID {
			nextCatID = id + 1
		}
	}

	otherCats := make(map[int]string, len(other.categories))
	for id, name := range other.categories {
		otherCats[id] = name
	}
	if len(otherCats) == 0 && len(other.annotations) > 0 {
		for _, ann := range other.annotations {
			otherCats[ann.CategoryID] = strconv.Itoa(ann.CategoryID)
		}
	}

	catMap := make(map[int]int, len(otherCats))
	for _, otherID := range sortedCategoryIDs(otherCats) {
		name := otherCats[otherID]
		if id, ok := nameToID[name]; ok {
			catMap[otherID] = id
			continue
		}
		s.categories[nextCatID] = name
		nameToID[name] = nextCatID
		catMap[otherID] = nextCatID
		nextCatID++
	}

	// Annotations can reference category ids absent from other's table;
	// give those a stringified category so the reference survives.
	for _, ann := range other.annotations {
		if _, ok := catMap[ann.CategoryID]; ok {
			continue
		}
		name := strconv.Itoa(ann.CategoryID)
		if id, ok := nameToID[name]; ok {
			catMap[ann.CategoryID] = id
			continue
		}
		s.categories[nextCatID] = name
		nameToID[name] = nextCatID
		catMap[ann.CategoryID] = nextCatID
		nextCatID++
	}

	return catMap
}

func sortedImageIDs(images map[int]*Image) []int {
	ids := make([]int, 0, len(images))
	for id := range images {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func sortedCategoryIDs(cats map[int]string) []int {
	ids := make([]int, 0, len(cats))
	for id := range cats {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
