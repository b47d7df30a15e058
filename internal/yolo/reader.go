package yolo

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"detlab/internal/dataset"
	"detlab/internal/imagemeta"
	"detlab/pkg/geometry"
)

// LoadReport aggregates per-record issues tolerated during a load.
type LoadReport struct {
	ImagesLoaded         int
	AnnotationsLoaded    int
	SkippedImages        int // files that could not be decoded
	SkippedLabelLines    int // malformed label lines
	FilteredCategoryZero int // label lines dropped for class id 0
}

// Load reads a YOLO dataset described by a data.yaml config into a new
// store. Image dimensions are probed by decoding each file; files that
// fail to decode are skipped with a warning. Label lines that fail to
// parse are skipped silently and counted.
//
// Class id 0 is reserved for a super-category and its label lines are
// filtered on load. Bounding boxes are deliberately not clamped to the
// image bounds: a source label that exceeds them is preserved so health
// checks can report it.
func Load(yamlPath string) (*dataset.Store, LoadReport, error) {
	var report LoadReport

	cfg, err := loadConfig(yamlPath)
	if err != nil {
		return nil, report, err
	}

	basePath := cfg.Path
	if basePath == "" {
		basePath = filepath.Dir(yamlPath)
	} else if !filepath.IsAbs(basePath) {
		basePath = filepath.Join(filepath.Dir(yamlPath), basePath)
	}

	cats, err := cfg.categories(basePath)
	if err != nil {
		return nil, report, err
	}
	delete(cats, 0)

	imgDir, labelDir := resolveDataDirs(basePath, cfg.Train)

	type entry struct {
		imgPath  string
		labelDir string
	}
	var entries []entry
	collect := func(dir, labels string) {
		files, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, f := range files {
			if f.IsDir() || !imagemeta.IsImageFile(f.Name()) {
				continue
			}
			entries = append(entries, entry{
				imgPath:  filepath.Join(dir, f.Name()),
				labelDir: labels,
			})
		}
	}
	collect(imgDir, labelDir)

	// Val images are only added when the resolved val directory differs
	// from the train directory, so the same files are not counted twice.
	if cfg.Val != "" {
		valImgDir, valLabelDir := resolveDataDirs(basePath, cfg.Val)
		if valImgDir != imgDir && dirExists(valImgDir) {
			collect(valImgDir, valLabelDir)
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].imgPath < entries[j].imgPath })

	store := dataset.New()
	store.SetCategories(cats)
	store.SetBasePath(basePath)
	store.SetImageRoot(imgDir)

	annID := 0
	for _, e := range entries {
		width, height, err := imagemeta.Probe(e.imgPath)
		if err != nil {
			report.SkippedImages++
			slog.Warn("skipping unreadable image", "path", e.imgPath, "err", err)
			continue
		}

		imgID := len(store.Images())
		fileName := filepath.Base(e.imgPath)
		if rel, err := filepath.Rel(basePath, e.imgPath); err == nil && !strings.HasPrefix(rel, "..") {
			fileName = rel
		}
		absPath, err := filepath.Abs(e.imgPath)
		if err != nil {
			absPath = e.imgPath
		}

		store.AddImage(dataset.Image{
			ID:       imgID,
			FileName: fileName,
			Width:    width,
			Height:   height,
			AbsPath:  absPath,
		})
		report.ImagesLoaded++

		stem := strings.TrimSuffix(filepath.Base(e.imgPath), filepath.Ext(e.imgPath))
		labelPath := filepath.Join(e.labelDir, stem+".txt")
		annID = readLabels(store, labelPath, imgID, width, height, annID, &report)
	}

	if report.SkippedImages > 0 || report.SkippedLabelLines > 0 {
		slog.Warn("tolerated records during YOLO load",
			"path", yamlPath,
			"skipped_images", report.SkippedImages,
			"skipped_label_lines", report.SkippedLabelLines)
	}
	return store, report, nil
}

// readLabels parses one label file and appends its annotations, returning
// the next annotation id. A missing label file simply means an image with
// no objects.
func readLabels(store *dataset.Store, labelPath string, imgID, imgW, imgH, nextID int, report *LoadReport) int {
	f, err := os.Open(labelPath)
	if err != nil {
		return nextID
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		// "class cx cy w h"; extra trailing fields (segmentation exports)
		// are tolerated, short or non-numeric lines are skipped.
		parts := strings.Fields(line)
		if len(parts) < 5 {
			report.SkippedLabelLines++
			continue
		}
		classID, err := strconv.Atoi(parts[0])
		if err != nil {
			report.SkippedLabelLines++
			continue
		}
		if classID == 0 {
			report.FilteredCategoryZero++
			continue
		}
		vals := make([]float64, 4)
		ok := true
		for i := 0; i < 4; i++ {
			vals[i], err = strconv.ParseFloat(parts[i+1], 64)
			if err != nil {
				ok = false
				break
			}
		}
		if !ok {
			report.SkippedLabelLines++
			continue
		}

		box := geometry.FromYOLO(geometry.YOLOBox{
			CenterX: vals[0],
			CenterY: vals[1],
			Width:   vals[2],
			Height:  vals[3],
		}, imgW, imgH)

		store.AddAnnotation(dataset.Annotation{
			ID:         nextID,
			ImageID:    imgID,
			CategoryID: classID,
			BBox:       box,
		})
		nextID++
		report.AnnotationsLoaded++
	}
	return nextID
}
