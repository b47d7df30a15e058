// Package split partitions a dataset's images into train/val/test sets
// while keeping duplicate-group members together in one split.
package split

import (
	"fmt"
	"math/rand"
	"sort"

	"detlab/internal/dataset"
)

// Options configures a split.
type Options struct {
	TrainRatio    float64
	ValRatio      float64
	TestRatio     float64
	Seed          int64
	ExcludeMarked bool
}

// DefaultOptions returns the conventional 70/20/10 split.
func DefaultOptions() Options {
	return Options{
		TrainRatio:    0.7,
		ValRatio:      0.2,
		TestRatio:     0.1,
		Seed:          42,
		ExcludeMarked: true,
	}
}

// Split partitions the store's images into {"train", "val", "test"} id
// lists. Duplicate groups are indivisible: every surviving member of a
// group lands in the same split. Each ungrouped eligible image forms its
// own singleton group. The shuffle is deterministic under opts.Seed.
//
// With at least three groups, every split with a positive ratio receives
// at least one group (val shrinks first to absorb rounding excess); two
// groups force a 1/1/0 split and a single group goes entirely to train,
// so tiny datasets never silently produce an empty requested split.
func Split(store *dataset.Store, opts Options) (map[string][]int, error) {
	total := opts.TrainRatio + opts.ValRatio + opts.TestRatio
	if total < 0.99 || total > 1.01 {
		return nil, fmt.Errorf("split ratios must sum to 1.0, got %v", total)
	}
	if opts.TrainRatio < 0 || opts.ValRatio < 0 || opts.TestRatio < 0 {
		return nil, fmt.Errorf("split ratios must be non-negative")
	}

	eligible := make(map[int]struct{})
	for id := range store.ExportableImages(opts.ExcludeMarked) {
		eligible[id] = struct{}{}
	}
	if len(eligible) == 0 {
		return map[string][]int{"train": {}, "val": {}, "test": {}}, nil
	}

	groups := buildGroups(store, eligible)

	rng := rand.New(rand.NewSource(opts.Seed))
	rng.Shuffle(len(groups), func(i, j int) {
		groups[i], groups[j] = groups[j], groups[i]
	})

	trainCount, valCount := allocate(len(groups), opts)

	result := map[string][]int{
		"train": flatten(groups[:trainCount]),
		"val":   flatten(groups[trainCount : trainCount+valCount]),
		"test":  flatten(groups[trainCount+valCount:]),
	}
	return result, nil
}

// buildGroups assembles the indivisible groups in deterministic order:
// duplicate groups first (insertion order, intersected with the eligible
// set), then every ungrouped eligible image as a singleton, ascending.
func buildGroups(store *dataset.Store, eligible map[int]struct{}) [][]int {
	var groups [][]int
	grouped := make(map[int]struct{})

	for _, dup := range store.DuplicateGroups() {
		var members []int
		for _, id := range dup {
			if _, ok := eligible[id]; ok {
				members = append(members, id)
				grouped[id] = struct{}{}
			}
		}
		if len(members) > 0 {
			groups = append(groups, members)
		}
	}

	var singles []int
	for id := range eligible {
		if _, ok := grouped[id]; !ok {
			singles = append(singles, id)
		}
	}
	sort.Ints(singles)
	for _, id := range singles {
		groups = append(groups, []int{id})
	}
	return groups
}

// allocate decides how many groups go to train and val; test takes the
// remainder.
func allocate(n int, opts Options) (trainCount, valCount int) {
	switch {
	case n == 1:
		return 1, 0
	case n == 2:
		return 1, 1
	}

	trainCount = int(float64(n) * opts.TrainRatio)
	valCount = int(float64(n) * opts.ValRatio)
	if opts.TrainRatio > 0 && trainCount < 1 {
		trainCount = 1
	}
	if opts.ValRatio > 0 && valCount < 1 {
		valCount = 1
	}

	// A single ratio inside the sum tolerance can still exceed 1.0 and
	// floor past n; clamp before the rounding corrections.
	trainCount = min(trainCount, n)

	// Keep the allocation within bounds, shrinking val first.
	if trainCount+valCount > n {
		valCount = n - trainCount
		if opts.ValRatio > 0 && valCount < 1 {
			valCount = 1
		}
		if trainCount+valCount > n {
			trainCount = n - valCount
		}
	}

	testCount := n - trainCount - valCount
	if opts.TestRatio == 0 && testCount > 0 {
		trainCount += testCount
	} else if opts.TestRatio > 0 && testCount == 0 {
		if valCount > 1 {
			valCount--
		} else if trainCount > 1 {
			trainCount--
		}
	}
	return trainCount, valCount
}

func flatten(groups [][]int) []int {
	ids := []int{}
	for _, group := range groups {
		ids = append(ids, group...)
	}
	sort.Ints(ids)
	return ids
}

// SplitStat summarizes one split of a partition.
type SplitStat struct {
	Count      int
	Percentage float64
}

// Stats returns per-split image counts and percentages for a partition.
func Stats(splitInfo map[string][]int) map[string]SplitStat {
	total := 0
	for _, ids := range splitInfo {
		total += len(ids)
	}

	stats := make(map[string]SplitStat, len(splitInfo))
	for name, ids := range splitInfo {
		pct := 0.0
		if total > 0 {
			pct = float64(len(ids)) / float64(total) * 100
		}
		stats[name] = SplitStat{Count: len(ids), Percentage: pct}
	}
	return stats
}
