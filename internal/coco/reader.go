package coco

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"detlab/internal/dataset"
)

// Load reads a COCO JSON file into a new store. imgRoot, when non-empty,
// is joined with each image's file_name to form its absolute path (an
// already absolute file_name is used as-is).
//
// Category id 0 is reserved for a super-category and is stripped on load,
// together with any annotations referencing it. Annotations referencing
// unknown image ids are filtered, not raised; both cases are counted in
// the returned report.
func Load(jsonPath, imgRoot string) (*dataset.Store, LoadReport, error) {
	var report LoadReport

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, report, fmt.Errorf("read COCO file: %w", err)
	}

	var file cocoFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, report, fmt.Errorf("parse COCO file %s: %w", jsonPath, err)
	}

	store := dataset.New()

	cats := make(map[int]string, len(file.Categories))
	for _, cat := range file.Categories {
		if cat.ID == 0 {
			continue
		}
		cats[cat.ID] = cat.Name
	}
	store.SetCategories(cats)

	for _, img := range file.Images {
		store.AddImage(img)
	}
	store.SetImageRoot(imgRoot)

	for _, ann := range file.Annotations {
		if ann.CategoryID == 0 {
			report.FilteredCategoryZero++
			continue
		}
		if _, ok := store.Image(ann.ImageID); !ok {
			report.FilteredOrphans++
			continue
		}
		store.AddAnnotation(dataset.Annotation{
			ID:         ann.ID,
			ImageID:    ann.ImageID,
			CategoryID: ann.CategoryID,
			BBox:       ann.BBox,
		})
		report.AnnotationsLoaded++
	}
	report.ImagesLoaded = len(file.Images)

	if report.FilteredCategoryZero > 0 || report.FilteredOrphans > 0 {
		slog.Warn("filtered annotations during COCO load",
			"path", jsonPath,
			"category_zero", report.FilteredCategoryZero,
			"orphans", report.FilteredOrphans)
	}
	return store, report, nil
}
