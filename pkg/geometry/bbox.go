// Package geometry provides basic geometric types used throughout the application.
package geometry

import (
	"encoding/json"
	"fmt"
)

// BBox represents a bounding box in absolute pixel coordinates.
// It serializes as the COCO-style four-element array [x, y, w, h].
type BBox struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// NewBBox creates a new BBox.
func NewBBox(x, y, width, height float64) BBox {
	return BBox{X: x, Y: y, Width: width, Height: height}
}

// Area returns the box area in square pixels.
func (b BBox) Area() float64 {
	return b.Width * b.Height
}

// AspectRatio returns width/height. A zero-height box yields +Inf.
func (b BBox) AspectRatio() float64 {
	return b.Width / b.Height
}

// YOLOBox is a normalized center-form box: all components in [0, 1]
// relative to the image size.
type YOLOBox struct {
	CenterX float64
	CenterY float64
	Width   float64
	Height  float64
}

// ToYOLO converts the box to normalized center form for an image of the
// given size, clamping every component to [0, 1]. Clamping is the writer's
// concern; readers use FromYOLO which preserves out-of-bounds boxes.
func (b BBox) ToYOLO(imgW, imgH int) YOLOBox {
	w := float64(imgW)
	h := float64(imgH)
	return YOLOBox{
		CenterX: clamp01((b.X + b.Width/2) / w),
		CenterY: clamp01((b.Y + b.Height/2) / h),
		Width:   clamp01(b.Width / w),
		Height:  clamp01(b.Height / h),
	}
}

// FromYOLO converts a normalized center-form box to absolute pixel
// coordinates. No clamping is applied: a source label that exceeds the
// image bounds stays out of bounds so health checks can see it.
func FromYOLO(yb YOLOBox, imgW, imgH int) BBox {
	w := float64(imgW)
	h := float64(imgH)
	return BBox{
		X:      (yb.CenterX - yb.Width/2) * w,
		Y:      (yb.CenterY - yb.Height/2) * h,
		Width:  yb.Width * w,
		Height: yb.Height * h,
	}
}

// MarshalJSON encodes the box as [x, y, w, h].
func (b BBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.X, b.Y, b.Width, b.Height})
}

// UnmarshalJSON decodes a [x, y, w, h] array.
func (b *BBox) UnmarshalJSON(data []byte) error {
	var arr []float64
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) != 4 {
		return fmt.Errorf("bbox must have 4 elements, got %d", len(arr))
	}
	b.X, b.Y, b.Width, b.Height = arr[0], arr[1], arr[2], arr[3]
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
