// Package yolo reads and writes YOLO-format object detection datasets:
// a data.yaml config, images/ and labels/ directory trees, and one
// normalized-coordinate label file per image.
package yolo

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// config mirrors the YOLO data.yaml layout. Names is either a mapping of
// class id to name or a plain list.
type config struct {
	Path  string `yaml:"path"`
	Train string `yaml:"train"`
	Val   string `yaml:"val"`
	Test  string `yaml:"test"`
	Names any    `yaml:"names"`
}

func loadConfig(yamlPath string) (*config, error) {
	data, err := os.ReadFile(yamlPath)
	if err != nil {
		return nil, fmt.Errorf("read YOLO config: %w", err)
	}
	var cfg config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse YOLO config %s: %w", yamlPath, err)
	}
	return &cfg, nil
}

// categories extracts the class-id -> name table from the names entry,
// falling back to a classes.txt style file in the base directory.
func (c *config) categories(basePath string) (map[int]string, error) {
	cats := make(map[int]string)

	switch names := c.Names.(type) {
	case map[string]any:
		for key, value := range names {
			id, err := strconv.Atoi(key)
			if err != nil {
				return nil, fmt.Errorf("names key %q is not an integer", key)
			}
			cats[id] = fmt.Sprint(value)
		}
	case map[any]any:
		for key, value := range names {
			id, err := strconv.Atoi(fmt.Sprint(key))
			if err != nil {
				return nil, fmt.Errorf("names key %v is not an integer", key)
			}
			cats[id] = fmt.Sprint(value)
		}
	case []any:
		for i, value := range names {
			cats[i] = fmt.Sprint(value)
		}
	case nil:
	default:
		return nil, fmt.Errorf("names must be a mapping or a list, got %T", c.Names)
	}

	if len(cats) > 0 {
		return cats, nil
	}

	for _, filename := range []string{"classes.txt", "names.txt", "labels.txt"} {
		path := filepath.Join(basePath, filename)
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(f)
		id := 0
		for scanner.Scan() {
			if name := strings.TrimSpace(scanner.Text()); name != "" {
				cats[id] = name
			}
			id++
		}
		f.Close()
		break
	}
	return cats, nil
}

// resolveDataDirs locates the image and label directories for one dataset
// entry (train or val). Precedence:
//
//  1. {base}/images plus {base}/labels when both exist.
//  2. A path whose leaf is "images" uses the sibling labels directory,
//     preferring labels/<same-leaf> over the bare parent labels dir.
//  3. A path containing an images/ subdirectory uses its own images/ and
//     labels/ children.
//  4. Otherwise the path itself is the image directory and labels is
//     looked up at the base, then as a sibling.
func resolveDataDirs(basePath, entry string) (imgDir, labelDir string) {
	p := basePath
	if entry != "" {
		if filepath.IsAbs(entry) {
			p = entry
		} else {
			p = filepath.Join(basePath, entry)
		}
	}

	baseImages := filepath.Join(basePath, "images")
	baseLabels := filepath.Join(basePath, "labels")
	if dirExists(baseImages) && dirExists(baseLabels) {
		return baseImages, baseLabels
	}

	if filepath.Base(p) == "images" {
		candidate := filepath.Join(filepath.Dir(p), "labels", filepath.Base(p))
		if dirExists(candidate) {
			return p, candidate
		}
		return p, filepath.Join(filepath.Dir(p), "labels")
	}

	if dirExists(filepath.Join(p, "images")) {
		return filepath.Join(p, "images"), filepath.Join(p, "labels")
	}

	if dirExists(baseLabels) {
		return p, baseLabels
	}
	if dirExists(filepath.Dir(p)) {
		return p, filepath.Join(filepath.Dir(p), "labels")
	}
	return p, p
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// sortedCategoryIDs returns the category ids in ascending order.
func sortedCategoryIDs(cats map[int]string) []int {
	ids := make([]int, 0, len(cats))
	for id := range cats {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
