package coco

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"detlab/internal/dataset"
	"detlab/internal/fsutil"
)

// Export writes the store as a COCO dataset. Category ids are normalized
// first, so exported ids are always the dense post-normalization ids.
//
// Without splitInfo, savePath names the output JSON file (a path without a
// .json suffix is treated as a directory and annotations.json is written
// inside it) and image files are copied into an images/ directory beside
// it. With splitInfo ({"train": ids, "val": ids, "test": ids}), savePath is
// treated as a directory receiving one <split>.json plus images/<split>/
// per non-empty split.
//
// Images marked for exclusion are dropped when excludeMarked is true,
// along with their annotations.
func Export(store *dataset.Store, savePath string, splitInfo map[string][]int, excludeMarked bool) (ExportReport, error) {
	var report ExportReport

	store.NormalizeCategoryIDs()
	exportable := store.ExportableImages(excludeMarked)

	catIDs := make([]int, 0, len(store.Categories()))
	for id := range store.Categories() {
		catIDs = append(catIDs, id)
	}
	sort.Ints(catIDs)
	cats := make([]cocoCategory, 0, len(catIDs))
	for _, id := range catIDs {
		cats = append(cats, cocoCategory{ID: id, Name: store.Categories()[id]})
	}

	if hasSplits(splitInfo) {
		saveDir := savePath
		if strings.EqualFold(filepath.Ext(savePath), ".json") {
			saveDir = filepath.Dir(savePath)
		}
		unlock := fsutil.LockExportDir(saveDir)
		defer unlock()
		if err := os.MkdirAll(saveDir, 0755); err != nil {
			return report, fmt.Errorf("create export directory: %w", err)
		}

		for _, splitName := range []string{"train", "val", "test"} {
			ids := intersectExportable(splitInfo[splitName], exportable)
			if len(ids) == 0 {
				continue
			}
			imagesDir := filepath.Join(saveDir, "images", splitName)
			if err := os.MkdirAll(imagesDir, 0755); err != nil {
				return report, fmt.Errorf("create split directory: %w", err)
			}
			file := buildFile(store, exportable, ids, cats, imagesDir, &report)
			jsonPath := filepath.Join(saveDir, splitName+".json")
			if err := writeJSON(jsonPath, file); err != nil {
				return report, err
			}
		}
		return report, nil
	}

	jsonPath := savePath
	if !strings.EqualFold(filepath.Ext(savePath), ".json") {
		jsonPath = filepath.Join(savePath, "annotations.json")
	}
	saveDir := filepath.Dir(jsonPath)
	unlock := fsutil.LockExportDir(saveDir)
	defer unlock()
	if err := os.MkdirAll(saveDir, 0755); err != nil {
		return report, fmt.Errorf("create export directory: %w", err)
	}
	imagesDir := filepath.Join(saveDir, "images")
	if err := os.MkdirAll(imagesDir, 0755); err != nil {
		return report, fmt.Errorf("create images directory: %w", err)
	}

	ids := make([]int, 0, len(exportable))
	for id := range exportable {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	file := buildFile(store, exportable, ids, cats, imagesDir, &report)
	if err := writeJSON(jsonPath, file); err != nil {
		return report, err
	}
	return report, nil
}

// buildFile assembles the COCO document for one id set and copies the
// image files. Missing source files are counted, not raised; the image
// metadata is still written so the annotation set stays complete.
func buildFile(store *dataset.Store, exportable map[int]*dataset.Image, ids []int, cats []cocoCategory, imagesDir string, report *ExportReport) cocoFile {
	idSet := make(map[int]struct{}, len(ids))
	images := make([]dataset.Image, 0, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
		img := *exportable[id]
		img.FileName = filepath.Base(img.FileName)
		images = append(images, img)
		report.Images++

		if err := copyImageFile(store, exportable[id], imagesDir); err != nil {
			report.MissingFiles++
			slog.Warn("image file not copied", "file", exportable[id].FileName, "err", err)
		}
	}

	anns := make([]cocoAnnotation, 0)
	for _, ann := range store.Annotations() {
		if _, ok := idSet[ann.ImageID]; !ok {
			continue
		}
		anns = append(anns, cocoAnnotation{
			ID:         ann.ID,
			ImageID:    ann.ImageID,
			CategoryID: ann.CategoryID,
			BBox:       ann.BBox,
			Area:       ann.BBox.Area(),
		})
		report.Annotations++
	}

	return cocoFile{Images: images, Annotations: anns, Categories: cats}
}

func copyImageFile(store *dataset.Store, img *dataset.Image, destDir string) error {
	src := store.SourceImagePath(img)
	if src == "" {
		return fmt.Errorf("source not found for %s", img.FileName)
	}
	dst := filepath.Join(destDir, filepath.Base(img.FileName))
	if _, err := os.Stat(dst); err == nil {
		return nil
	}
	return fsutil.CopyFile(src, dst)
}

func writeJSON(path string, file cocoFile) error {
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encode COCO file: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func hasSplits(splitInfo map[string][]int) bool {
	for _, ids := range splitInfo {
		if len(ids) > 0 {
			return true
		}
	}
	return false
}

func intersectExportable(ids []int, exportable map[int]*dataset.Image) []int {
	var out []int
	for _, id := range ids {
		if _, ok := exportable[id]; ok {
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}
