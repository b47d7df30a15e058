package coco

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"detlab/internal/dataset"
	"detlab/pkg/geometry"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))))
}

// writeFixture writes a COCO JSON with n images (and matching PNG files
// under <dir>/images) plus the given annotations and categories.
func writeFixture(t *testing.T, dir string, n int, anns []cocoAnnotation, cats []cocoCategory) string {
	t.Helper()
	file := cocoFile{Annotations: anns, Categories: cats}
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("img%03d.png", i)
		writePNG(t, filepath.Join(dir, "images", name), 64, 48)
		file.Images = append(file.Images, dataset.Image{
			ID: i, FileName: name, Width: 64, Height: 48,
		})
	}
	data, err := json.Marshal(file)
	require.NoError(t, err)
	jsonPath := filepath.Join(dir, "annotations.json")
	require.NoError(t, os.WriteFile(jsonPath, data, 0644))
	return jsonPath
}

func TestLoadStripsCategoryZero(t *testing.T) {
	dir := t.TempDir()
	jsonPath := writeFixture(t, dir, 2,
		[]cocoAnnotation{
			{ID: 0, ImageID: 0, CategoryID: 0, BBox: geometry.NewBBox(0, 0, 5, 5)},
			{ID: 1, ImageID: 0, CategoryID: 1, BBox: geometry.NewBBox(1, 2, 10, 20)},
		},
		[]cocoCategory{{ID: 0, Name: "super"}, {ID: 1, Name: "car"}})

	store, report, err := Load(jsonPath, filepath.Join(dir, "images"))
	require.NoError(t, err)

	assert.Equal(t, 1, report.FilteredCategoryZero)
	assert.Len(t, store.Annotations(), 1)
	_, hasZero := store.Categories()[0]
	assert.False(t, hasZero)
	assert.Equal(t, "car", store.Categories()[1])
}

func TestLoadFiltersOrphanAnnotations(t *testing.T) {
	dir := t.TempDir()
	jsonPath := writeFixture(t, dir, 1,
		[]cocoAnnotation{
			{ID: 0, ImageID: 0, CategoryID: 1, BBox: geometry.NewBBox(0, 0, 5, 5)},
			{ID: 1, ImageID: 42, CategoryID: 1, BBox: geometry.NewBBox(0, 0, 5, 5)},
		},
		[]cocoCategory{{ID: 1, Name: "car"}})

	store, report, err := Load(jsonPath, filepath.Join(dir, "images"))
	require.NoError(t, err)

	assert.Equal(t, 1, report.FilteredOrphans)
	assert.Len(t, store.Annotations(), 1)
}

func TestLoadResolvesAbsolutePaths(t *testing.T) {
	dir := t.TempDir()
	jsonPath := writeFixture(t, dir, 1, nil, []cocoCategory{{ID: 1, Name: "car"}})

	store, _, err := Load(jsonPath, filepath.Join(dir, "images"))
	require.NoError(t, err)

	img, ok := store.Image(0)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "images", "img000.png"), img.AbsPath)
}

func TestLoadMissingFileFailsFast(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.json"), "")
	assert.Error(t, err)
}

func TestLoadMalformedJSONFailsFast(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{images:"), 0644))

	_, _, err := Load(path, "")
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	jsonPath := writeFixture(t, dir, 3,
		[]cocoAnnotation{
			{ID: 0, ImageID: 0, CategoryID: 1, BBox: geometry.NewBBox(1, 2, 10, 20)},
			{ID: 1, ImageID: 1, CategoryID: 2, BBox: geometry.NewBBox(0.5, 3.25, 8, 4)},
			{ID: 2, ImageID: 2, CategoryID: 1, BBox: geometry.NewBBox(30, 10, 12, 6)},
		},
		// "ambulance" sorts first and takes the reserved slot 0 on export,
		// so the annotated categories survive a re-read (the reader strips
		// category 0 by contract).
		[]cocoCategory{{ID: 1, Name: "car"}, {ID: 2, Name: "truck"}, {ID: 3, Name: "ambulance"}})

	store, _, err := Load(jsonPath, filepath.Join(dir, "images"))
	require.NoError(t, err)

	outDir := filepath.Join(dir, "out")
	report, err := Export(store, filepath.Join(outDir, "export.json"), nil, true)
	require.NoError(t, err)
	assert.Zero(t, report.MissingFiles)

	reloaded, _, err := Load(filepath.Join(outDir, "export.json"), filepath.Join(outDir, "images"))
	require.NoError(t, err)

	assert.Equal(t, store.Stats().TotalImages, reloaded.Stats().TotalImages)
	assert.Equal(t, store.Stats().TotalInstances, reloaded.Stats().TotalInstances)

	orig := store.Annotations()
	back := reloaded.Annotations()
	require.Len(t, back, len(orig))
	for i := range orig {
		assert.Equal(t, orig[i].BBox, back[i].BBox)
	}

	// Copied image files exist.
	for _, img := range reloaded.Images() {
		_, err := os.Stat(filepath.Join(outDir, "images", img.FileName))
		assert.NoError(t, err)
	}
}

func TestExportRespectsExclusion(t *testing.T) {
	dir := t.TempDir()
	var anns []cocoAnnotation
	for i := 0; i < 10; i++ {
		anns = append(anns, cocoAnnotation{
			ID: i, ImageID: i, CategoryID: 1, BBox: geometry.NewBBox(0, 0, 4, 4),
		})
	}
	jsonPath := writeFixture(t, dir, 10, anns, []cocoCategory{{ID: 1, Name: "car"}})

	store, _, err := Load(jsonPath, filepath.Join(dir, "images"))
	require.NoError(t, err)
	store.MarkForExclusion(7)

	outPath := filepath.Join(dir, "out", "export.json")
	_, err = Export(store, outPath, nil, true)
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var out cocoFile
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Len(t, out.Images, 9)
	for _, img := range out.Images {
		assert.NotEqual(t, 7, img.ID)
	}
	for _, ann := range out.Annotations {
		assert.NotEqual(t, 7, ann.ImageID)
	}
}

func TestExportNormalizesCategories(t *testing.T) {
	dir := t.TempDir()
	jsonPath := writeFixture(t, dir, 1,
		[]cocoAnnotation{{ID: 0, ImageID: 0, CategoryID: 9, BBox: geometry.NewBBox(0, 0, 2, 2)}},
		[]cocoCategory{{ID: 9, Name: "car"}, {ID: 4, Name: "truck"}})

	store, _, err := Load(jsonPath, filepath.Join(dir, "images"))
	require.NoError(t, err)

	outPath := filepath.Join(dir, "out", "export.json")
	_, err = Export(store, outPath, nil, true)
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var out cocoFile
	require.NoError(t, json.Unmarshal(data, &out))

	require.Len(t, out.Categories, 2)
	assert.Equal(t, 0, out.Categories[0].ID)
	assert.Equal(t, dataset.ReservedLabel, out.Categories[0].Name)
	assert.Equal(t, 1, out.Categories[1].ID)
	assert.Equal(t, "truck", out.Categories[1].Name)

	// "car" landed on slot 0 and was renamed; the annotation follows it.
	assert.Equal(t, 0, out.Annotations[0].CategoryID)
}

func TestExportWithSplits(t *testing.T) {
	dir := t.TempDir()
	var anns []cocoAnnotation
	for i := 0; i < 4; i++ {
		anns = append(anns, cocoAnnotation{
			ID: i, ImageID: i, CategoryID: 1, BBox: geometry.NewBBox(0, 0, 3, 3),
		})
	}
	jsonPath := writeFixture(t, dir, 4, anns, []cocoCategory{{ID: 1, Name: "car"}})

	store, _, err := Load(jsonPath, filepath.Join(dir, "images"))
	require.NoError(t, err)

	outDir := filepath.Join(dir, "out")
	splits := map[string][]int{"train": {0, 1}, "val": {2}, "test": {3}}
	_, err = Export(store, outDir, splits, true)
	require.NoError(t, err)

	for splitName, want := range map[string]int{"train": 2, "val": 1, "test": 1} {
		data, err := os.ReadFile(filepath.Join(outDir, splitName+".json"))
		require.NoError(t, err, splitName)
		var out cocoFile
		require.NoError(t, json.Unmarshal(data, &out))
		assert.Len(t, out.Images, want, splitName)
		assert.Len(t, out.Annotations, want, splitName)

		for _, img := range out.Images {
			_, err := os.Stat(filepath.Join(outDir, "images", splitName, img.FileName))
			assert.NoError(t, err)
		}
	}
}

func TestExportArea(t *testing.T) {
	dir := t.TempDir()
	jsonPath := writeFixture(t, dir, 1,
		[]cocoAnnotation{{ID: 0, ImageID: 0, CategoryID: 1, BBox: geometry.NewBBox(0, 0, 6, 7)}},
		[]cocoCategory{{ID: 1, Name: "car"}})

	store, _, err := Load(jsonPath, filepath.Join(dir, "images"))
	require.NoError(t, err)

	outPath := filepath.Join(dir, "out", "export.json")
	_, err = Export(store, outPath, nil, true)
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var out cocoFile
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, 42.0, out.Annotations[0].Area)
}
