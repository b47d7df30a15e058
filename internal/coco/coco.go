// Package coco reads and writes COCO-format object detection datasets:
// a single JSON file with images, annotations, and categories, plus the
// image files themselves.
package coco

import (
	"detlab/internal/dataset"
	"detlab/pkg/geometry"
)

// cocoFile is the on-disk COCO JSON shape. Derived annotation columns
// never appear here.
type cocoFile struct {
	Images      []dataset.Image  `json:"images"`
	Annotations []cocoAnnotation `json:"annotations"`
	Categories  []cocoCategory   `json:"categories"`
}

type cocoAnnotation struct {
	ID         int           `json:"id"`
	ImageID    int           `json:"image_id"`
	CategoryID int           `json:"category_id"`
	BBox       geometry.BBox `json:"bbox"`
	Area       float64       `json:"area,omitempty"`
}

type cocoCategory struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// LoadReport aggregates per-record issues tolerated during a load.
type LoadReport struct {
	ImagesLoaded         int
	AnnotationsLoaded    int
	FilteredCategoryZero int // annotations dropped for referencing category 0
	FilteredOrphans      int // annotations dropped for referencing unknown images
}

// ExportReport aggregates per-record issues tolerated during an export.
type ExportReport struct {
	Images       int
	Annotations  int
	MissingFiles int // image files that could not be located and were not copied
}
