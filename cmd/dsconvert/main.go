// Command dsconvert loads one or more COCO/YOLO datasets, merges them,
// optionally splits them, and exports the result in either format.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"detlab/internal/coco"
	"detlab/internal/dataset"
	"detlab/internal/split"
	"detlab/internal/version"
	"detlab/internal/yolo"
)

func main() {
	out := flag.String("out", "", "Output path (directory, or .json file for COCO)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	format := flag.String("to", "coco", "Export format: coco or yolo")
	imgRoot := flag.String("img-root", "", "Image root directory for COCO inputs")
	ratios := flag.String("split", "", "Optional train/val/test ratios, e.g. 0.7,0.2,0.1")
	seed := flag.Int64("seed", 42, "Random seed for splitting")
	includeExcluded := flag.Bool("include-excluded", false, "Export images marked for exclusion too")
	flag.Parse()

	if *showVersion {
		fmt.Printf("dsconvert %s (%s, built %s)\n", version.Version, version.GitCommit, version.BuildTime)
		return
	}

	inputs := flag.Args()
	if len(inputs) == 0 || *out == "" {
		fmt.Println("Usage: dsconvert -out <path> [-to coco|yolo] [-split 0.7,0.2,0.1] <dataset.json|data.yaml> ...")
		os.Exit(1)
	}

	var merged *dataset.Store
	for _, input := range inputs {
		store, err := loadAny(input, *imgRoot)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load %s: %v\n", input, err)
			os.Exit(1)
		}
		store.AddSource(filepath.Base(input), nil)

		s := store.Stats()
		fmt.Printf("Loaded %s: %d images, %d instances, %d classes\n",
			input, s.TotalImages, s.TotalInstances, s.TotalClasses)

		if merged == nil {
			merged = store
		} else {
			merged.Merge(store)
		}
	}

	s := merged.Stats()
	fmt.Printf("Merged: %d images, %d instances, %d classes\n",
		s.TotalImages, s.TotalInstances, s.TotalClasses)

	excludeMarked := !*includeExcluded

	var splitInfo map[string][]int
	if *ratios != "" {
		opts, err := parseRatios(*ratios)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -split: %v\n", err)
			os.Exit(1)
		}
		opts.Seed = *seed
		opts.ExcludeMarked = excludeMarked

		splitInfo, err = split.Split(merged, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Split failed: %v\n", err)
			os.Exit(1)
		}
		for name, st := range split.Stats(splitInfo) {
			fmt.Printf("  %s: %d images (%.1f%%)\n", name, st.Count, st.Percentage)
		}
	}

	switch *format {
	case "coco":
		report, err := coco.Export(merged, *out, splitInfo, excludeMarked)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Exported %d images, %d annotations (%d missing files)\n",
			report.Images, report.Annotations, report.MissingFiles)
	case "yolo":
		report, err := yolo.Export(merged, *out, splitInfo, excludeMarked)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Exported %d images, %d annotations (%d missing files)\n",
			report.Images, report.Annotations, report.MissingFiles)
	default:
		fmt.Fprintf(os.Stderr, "Unknown export format: %s\n", *format)
		os.Exit(1)
	}
}

// loadAny picks the reader from the file extension: .json is COCO,
// .yaml/.yml is YOLO.
func loadAny(path, imgRoot string) (*dataset.Store, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		store, _, err := coco.Load(path, imgRoot)
		return store, err
	case ".yaml", ".yml":
		store, _, err := yolo.Load(path)
		return store, err
	default:
		return nil, fmt.Errorf("unrecognized dataset config extension: %s", path)
	}
}

func parseRatios(s string) (split.Options, error) {
	opts := split.DefaultOptions()
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return opts, fmt.Errorf("expected three comma-separated ratios")
	}
	vals := make([]float64, 3)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return opts, fmt.Errorf("ratio %q: %w", part, err)
		}
		vals[i] = v
	}
	opts.TrainRatio, opts.ValRatio, opts.TestRatio = vals[0], vals[1], vals[2]
	return opts, nil
}
