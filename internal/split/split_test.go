package split

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"detlab/internal/dataset"
)

func storeWithImages(t *testing.T, n int) *dataset.Store {
	t.Helper()
	s := dataset.New()
	for i := 0; i < n; i++ {
		s.AddImage(dataset.Image{ID: i, FileName: fmt.Sprintf("img%d.jpg", i), Width: 10, Height: 10})
	}
	return s
}

func TestRatioValidation(t *testing.T) {
	s := storeWithImages(t, 10)

	opts := DefaultOptions()
	opts.TrainRatio, opts.ValRatio, opts.TestRatio = 0.5, 0.6, 0.0
	_, err := Split(s, opts)
	assert.Error(t, err, "ratios summing to 1.1 must be rejected")

	opts.TrainRatio, opts.ValRatio, opts.TestRatio = 1.2, -0.2, 0.0
	_, err = Split(s, opts)
	assert.Error(t, err, "negative ratios must be rejected")
}

func TestSplitCoversAllImagesExactlyOnce(t *testing.T) {
	s := storeWithImages(t, 20)

	result, err := Split(s, DefaultOptions())
	require.NoError(t, err)

	seen := make(map[int]int)
	for _, ids := range result {
		for _, id := range ids {
			seen[id]++
		}
	}
	assert.Len(t, seen, 20)
	for id, count := range seen {
		assert.Equal(t, 1, count, "image %d assigned more than once", id)
	}
}

func TestSplitDeterministicUnderSeed(t *testing.T) {
	s := storeWithImages(t, 30)

	a, err := Split(s, DefaultOptions())
	require.NoError(t, err)
	b, err := Split(s, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	opts := DefaultOptions()
	opts.Seed = 7
	c, err := Split(s, opts)
	require.NoError(t, err)
	assert.NotEqual(t, a["train"], c["train"], "different seeds should shuffle differently")
}

func TestDuplicateGroupCohesion(t *testing.T) {
	s := storeWithImages(t, 30)
	groups := [][]int{{0, 1, 2}, {5, 6}, {10, 11, 12, 13}}
	s.SetDuplicateGroups(groups)

	result, err := Split(s, DefaultOptions())
	require.NoError(t, err)

	locate := func(id int) string {
		for name, ids := range result {
			for _, v := range ids {
				if v == id {
					return name
				}
			}
		}
		return ""
	}

	for _, group := range groups {
		home := locate(group[0])
		require.NotEmpty(t, home)
		for _, id := range group[1:] {
			assert.Equal(t, home, locate(id), "group %v split across sets", group)
		}
	}
}

func TestExcludedImagesNotSplit(t *testing.T) {
	s := storeWithImages(t, 10)
	s.MarkForExclusion(3)
	s.MarkForExclusion(4)

	result, err := Split(s, DefaultOptions())
	require.NoError(t, err)

	total := 0
	for _, ids := range result {
		total += len(ids)
		for _, id := range ids {
			assert.NotEqual(t, 3, id)
			assert.NotEqual(t, 4, id)
		}
	}
	assert.Equal(t, 8, total)
}

func TestTinyDatasetTwoGroups(t *testing.T) {
	s := storeWithImages(t, 2)

	result, err := Split(s, DefaultOptions())
	require.NoError(t, err)

	assert.Len(t, result["train"], 1)
	assert.Len(t, result["val"], 1)
	assert.Empty(t, result["test"])
}

func TestTinyDatasetOneGroup(t *testing.T) {
	s := storeWithImages(t, 1)

	result, err := Split(s, DefaultOptions())
	require.NoError(t, err)

	assert.Len(t, result["train"], 1)
	assert.Empty(t, result["val"])
	assert.Empty(t, result["test"])
}

func TestSmallSampleCorrection(t *testing.T) {
	// Three groups with ratios that floor val and test to zero: every
	// positive-ratio split still receives a group.
	s := storeWithImages(t, 3)
	opts := DefaultOptions()
	opts.TrainRatio, opts.ValRatio, opts.TestRatio = 0.9, 0.05, 0.05

	result, err := Split(s, opts)
	require.NoError(t, err)

	assert.NotEmpty(t, result["train"])
	assert.NotEmpty(t, result["val"])
	assert.NotEmpty(t, result["test"])
}

func TestOverweightTrainRatioWithinTolerance(t *testing.T) {
	// A train ratio just above 1.0 passes the sum tolerance; the
	// allocation must clamp rather than slice past the group count.
	s := storeWithImages(t, 100)
	opts := DefaultOptions()
	opts.TrainRatio, opts.ValRatio, opts.TestRatio = 1.01, 0.0, 0.0

	result, err := Split(s, opts)
	require.NoError(t, err)

	assert.Len(t, result["train"], 100)
	assert.Empty(t, result["val"])
	assert.Empty(t, result["test"])
}

func TestOverweightValRatioWithinTolerance(t *testing.T) {
	s := storeWithImages(t, 100)
	opts := DefaultOptions()
	opts.TrainRatio, opts.ValRatio, opts.TestRatio = 0.0, 1.01, 0.0

	result, err := Split(s, opts)
	require.NoError(t, err)

	total := 0
	for _, ids := range result {
		total += len(ids)
	}
	assert.Equal(t, 100, total)
}

func TestZeroTestRatioGetsNothing(t *testing.T) {
	s := storeWithImages(t, 3)
	opts := DefaultOptions()
	opts.TrainRatio, opts.ValRatio, opts.TestRatio = 0.5, 0.5, 0.0

	result, err := Split(s, opts)
	require.NoError(t, err)
	assert.Empty(t, result["test"])
}

func TestEmptyStore(t *testing.T) {
	s := dataset.New()

	result, err := Split(s, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, result["train"])
	assert.Empty(t, result["val"])
	assert.Empty(t, result["test"])
}

func TestGroupMembersSorted(t *testing.T) {
	s := storeWithImages(t, 6)
	s.SetDuplicateGroups([][]int{{5, 0, 3}})

	result, err := Split(s, DefaultOptions())
	require.NoError(t, err)

	for _, ids := range result {
		for i := 1; i < len(ids); i++ {
			assert.Less(t, ids[i-1], ids[i], "ids must be sorted")
		}
	}
}

func TestStats(t *testing.T) {
	stats := Stats(map[string][]int{
		"train": {1, 2, 3},
		"val":   {4},
		"test":  {},
	})

	assert.Equal(t, 3, stats["train"].Count)
	assert.InDelta(t, 75.0, stats["train"].Percentage, 1e-9)
	assert.InDelta(t, 25.0, stats["val"].Percentage, 1e-9)
	assert.Zero(t, stats["test"].Count)
}
