package yolo

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"detlab/internal/dataset"
	"detlab/internal/fsutil"
)

// ExportReport aggregates per-record issues tolerated during an export.
type ExportReport struct {
	Images       int
	Annotations  int
	MissingFiles int // image files that could not be located and were skipped
}

// dataYAML is the data.yaml document written alongside an export.
type dataYAML struct {
	Path  string         `yaml:"path"`
	Train string         `yaml:"train"`
	Val   string         `yaml:"val"`
	Test  string         `yaml:"test,omitempty"`
	Names map[int]string `yaml:"names"`
}

// Export writes the store as a YOLO dataset under saveDir. Category ids
// are normalized first, so label class indices are always the dense
// post-normalization ids. Every exported image gets a label file, possibly
// empty; box coordinates are written in normalized center form, each
// component clamped to [0, 1] at 6-decimal precision.
//
// With splitInfo, images and labels land under images/<split> and
// labels/<split>; without it, under flat images/ and labels/ directories.
// Images marked for exclusion are dropped when excludeMarked is true.
func Export(store *dataset.Store, saveDir string, splitInfo map[string][]int, excludeMarked bool) (ExportReport, error) {
	var report ExportReport

	unlock := fsutil.LockExportDir(saveDir)
	defer unlock()
	if err := os.MkdirAll(saveDir, 0755); err != nil {
		return report, fmt.Errorf("create export directory: %w", err)
	}

	store.NormalizeCategoryIDs()
	exportable := store.ExportableImages(excludeMarked)

	names := make(map[int]string, len(store.Categories()))
	for i, id := range sortedCategoryIDs(store.Categories()) {
		names[i] = store.Categories()[id]
	}

	annsByImage := make(map[int][]*dataset.Annotation)
	for _, ann := range store.Annotations() {
		if _, ok := exportable[ann.ImageID]; !ok {
			continue
		}
		annsByImage[ann.ImageID] = append(annsByImage[ann.ImageID], ann)
	}

	absDir, err := filepath.Abs(saveDir)
	if err != nil {
		absDir = saveDir
	}
	cfg := dataYAML{Path: absDir, Names: names}

	if hasSplits(splitInfo) {
		for _, splitName := range []string{"train", "val", "test"} {
			ids := intersectExportable(splitInfo[splitName], exportable)
			if len(ids) == 0 {
				continue
			}
			imagesDir := filepath.Join(saveDir, "images", splitName)
			labelsDir := filepath.Join(saveDir, "labels", splitName)
			if err := os.MkdirAll(imagesDir, 0755); err != nil {
				return report, fmt.Errorf("create split directory: %w", err)
			}
			if err := os.MkdirAll(labelsDir, 0755); err != nil {
				return report, fmt.Errorf("create split directory: %w", err)
			}
			for _, id := range ids {
				exportImage(store, exportable[id], annsByImage[id], imagesDir, labelsDir, &report)
			}
			rel := "images/" + splitName
			switch splitName {
			case "train":
				cfg.Train = rel
			case "val":
				cfg.Val = rel
			case "test":
				cfg.Test = rel
			}
		}
	} else {
		imagesDir := filepath.Join(saveDir, "images")
		labelsDir := filepath.Join(saveDir, "labels")
		if err := os.MkdirAll(imagesDir, 0755); err != nil {
			return report, fmt.Errorf("create images directory: %w", err)
		}
		if err := os.MkdirAll(labelsDir, 0755); err != nil {
			return report, fmt.Errorf("create labels directory: %w", err)
		}

		ids := make([]int, 0, len(exportable))
		for id := range exportable {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			exportImage(store, exportable[id], annsByImage[id], imagesDir, labelsDir, &report)
		}
		cfg.Train = "images"
		cfg.Val = "images"
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return report, fmt.Errorf("encode data.yaml: %w", err)
	}
	if err := os.WriteFile(filepath.Join(saveDir, "data.yaml"), data, 0644); err != nil {
		return report, fmt.Errorf("write data.yaml: %w", err)
	}
	return report, nil
}

// exportImage copies one image file and writes its label file. A missing
// source file skips the image entirely (both copies) and is counted.
func exportImage(store *dataset.Store, img *dataset.Image, anns []*dataset.Annotation, imagesDir, labelsDir string, report *ExportReport) {
	src := store.SourceImagePath(img)
	if src == "" {
		report.MissingFiles++
		slog.Warn("image source not found", "file", img.FileName)
		return
	}
	base := filepath.Base(img.FileName)
	if err := fsutil.CopyFile(src, filepath.Join(imagesDir, base)); err != nil {
		report.MissingFiles++
		slog.Warn("image file not copied", "file", img.FileName, "err", err)
		return
	}
	report.Images++

	lines := make([]string, 0, len(anns))
	for _, ann := range anns {
		// After normalization the category id is the class index.
		yb := ann.BBox.ToYOLO(img.Width, img.Height)
		lines = append(lines, fmt.Sprintf("%d %.6f %.6f %.6f %.6f",
			ann.CategoryID, yb.CenterX, yb.CenterY, yb.Width, yb.Height))
		report.Annotations++
	}

	stem := strings.TrimSuffix(base, filepath.Ext(base))
	labelPath := filepath.Join(labelsDir, stem+".txt")
	if err := os.WriteFile(labelPath, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		slog.Warn("label file not written", "path", labelPath, "err", err)
	}
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
