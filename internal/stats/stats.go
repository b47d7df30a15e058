// Package stats computes dataset statistics and health checks over a
// read-only snapshot. Heavier analyses (feature manifolds, texture
// metrics, perceptual hashing) live outside the core; this package covers
// the tabular summaries the overview surfaces need.
package stats

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"detlab/internal/dataset"
	"detlab/pkg/geometry"
)

// COCO object-size thresholds, in squared pixels.
const (
	smallAreaMax  = 32 * 32
	mediumAreaMax = 96 * 96
)

// SizeDistribution counts objects per COCO size bucket.
type SizeDistribution struct {
	Small  int
	Medium int
	Large  int
}

// Sizes returns the small/medium/large object distribution.
func Sizes(snap *dataset.Snapshot) SizeDistribution {
	var dist SizeDistribution
	for _, ann := range snap.Annotations {
		switch area := ann.Area; {
		case area < smallAreaMax:
			dist.Small++
		case area < mediumAreaMax:
			dist.Medium++
		default:
			dist.Large++
		}
	}
	return dist
}

// CategoryCounts returns instance counts keyed by category name.
func CategoryCounts(snap *dataset.Snapshot) map[string]int {
	counts := make(map[string]int)
	for _, ann := range snap.Annotations {
		counts[ann.CategoryName]++
	}
	return counts
}

// GeometrySummary holds distribution summaries for bounding-box geometry.
type GeometrySummary struct {
	Count        int
	AreaMean     float64
	AreaStdDev   float64
	AreaMedian   float64
	AspectMean   float64
	AspectStdDev float64
	AspectMedian float64
}

// Geometry summarizes the area and aspect-ratio distributions of all
// annotations in the snapshot.
func Geometry(snap *dataset.Snapshot) GeometrySummary {
	n := len(snap.Annotations)
	if n == 0 {
		return GeometrySummary{}
	}

	areas := make([]float64, n)
	aspects := make([]float64, n)
	for i, ann := range snap.Annotations {
		areas[i] = ann.Area
		aspects[i] = ann.AspectRatio
	}
	sort.Float64s(areas)
	sort.Float64s(aspects)

	return GeometrySummary{
		Count:        n,
		AreaMean:     stat.Mean(areas, nil),
		AreaStdDev:   stat.StdDev(areas, nil),
		AreaMedian:   stat.Quantile(0.5, stat.Empirical, areas, nil),
		AspectMean:   stat.Mean(aspects, nil),
		AspectStdDev: stat.StdDev(aspects, nil),
		AspectMedian: stat.Quantile(0.5, stat.Empirical, aspects, nil),
	}
}

// Health issue types.
const (
	IssueTinyBox     = "Tiny Box"
	IssueOutOfBounds = "Out of Bounds"
	IssueGiantBox    = "Giant Box"
)

// giantAreaRatio is the fraction of the image area above which a single
// box is flagged as suspicious.
const giantAreaRatio = 0.95

// HealthIssue describes one suspect annotation.
type HealthIssue struct {
	Type         string
	ImageID      int
	AnnotationID int
	Detail       string
	BBox         geometry.BBox
}

// CheckHealth scans all annotations for degenerate geometry: boxes under
// one pixel wide or tall, boxes exceeding their image bounds, and boxes
// covering nearly the whole image. Out-of-bounds boxes are expected here
// precisely because the readers preserve them.
func CheckHealth(snap *dataset.Snapshot) []HealthIssue {
	var issues []HealthIssue
	for _, ann := range snap.Annotations {
		if ann.BBoxW < 1 || ann.BBoxH < 1 {
			issues = append(issues, HealthIssue{
				Type:         IssueTinyBox,
				ImageID:      ann.ImageID,
				AnnotationID: ann.ID,
				Detail:       fmt.Sprintf("w=%.1f, h=%.1f", ann.BBoxW, ann.BBoxH),
				BBox:         ann.BBox,
			})
		}

		img, ok := snap.Images[ann.ImageID]
		if !ok {
			continue
		}
		imgW := float64(img.Width)
		imgH := float64(img.Height)

		if ann.BBox.X < 0 || ann.BBox.Y < 0 ||
			ann.BBox.X+ann.BBox.Width > imgW || ann.BBox.Y+ann.BBox.Height > imgH {
			issues = append(issues, HealthIssue{
				Type:         IssueOutOfBounds,
				ImageID:      ann.ImageID,
				AnnotationID: ann.ID,
				Detail: fmt.Sprintf("Box[%g,%g,%g,%g] vs Img[%dx%d]",
					ann.BBox.X, ann.BBox.Y, ann.BBox.Width, ann.BBox.Height, img.Width, img.Height),
				BBox: ann.BBox,
			})
		}

		if imgArea := imgW * imgH; imgArea > 0 && ann.Area/imgArea > giantAreaRatio {
			issues = append(issues, HealthIssue{
				Type:         IssueGiantBox,
				ImageID:      ann.ImageID,
				AnnotationID: ann.ID,
				Detail:       fmt.Sprintf("Area Ratio: %.2f", ann.Area/imgArea),
				BBox:         ann.BBox,
			})
		}
	}
	return issues
}
