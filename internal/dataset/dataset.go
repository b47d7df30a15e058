// Package dataset implements the unified in-memory model for object
// detection datasets: images, categories, annotations, and the side tables
// (exclusion set, duplicate groups, source tracking) that curation
// operations maintain.
//
// A Store follows a single-writer model. It is not safe for concurrent
// mutation; background analysis tasks operate on a Snapshot instead (see
// the task package).
package dataset

import (
	"sort"
	"strconv"

	"detlab/pkg/geometry"
)

// Image describes one image in the dataset. Width and height are pixel
// dimensions. AbsPath and Source are load-time metadata and never appear
// in serialized exports.
type Image struct {
	ID       int    `json:"id"`
	FileName string `json:"file_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	AbsPath  string `json:"-"`
	Source   string `json:"-"`
}

// Annotation is one labeled bounding box. The fields after BBox are
// derived columns: they are recomputed whenever BBox or the category
// mapping changes and are excluded from every serialized export.
type Annotation struct {
	ID         int            `json:"id"`
	ImageID    int            `json:"image_id"`
	CategoryID int            `json:"category_id"`
	BBox       geometry.BBox  `json:"bbox"`

	BBoxW        float64 `json:"-"`
	BBoxH        float64 `json:"-"`
	Area         float64 `json:"-"`
	AspectRatio  float64 `json:"-"`
	CategoryName string  `json:"-"`
}

// Summary holds basic dataset counts.
type Summary struct {
	TotalImages    int
	TotalInstances int
	TotalClasses   int
}

// Store is the entity store for one dataset.
type Store struct {
	images      map[int]*Image
	categories  map[int]string
	annotations []*Annotation

	imgRoot  string
	basePath string

	excluded  map[int]struct{}
	dupGroups []map[int]struct{}
	sources   map[string]map[int]struct{}
}

// New creates an empty store.
func New() *Store {
	return &Store{
		images:     make(map[int]*Image),
		categories: make(map[int]string),
		excluded:   make(map[int]struct{}),
		sources:    make(map[string]map[int]struct{}),
	}
}

// Images returns the live image table keyed by id. Callers must treat the
// result as read-only.
func (s *Store) Images() map[int]*Image {
	return s.images
}

// Image returns the image with the given id.
func (s *Store) Image(id int) (*Image, bool) {
	img, ok := s.images[id]
	return img, ok
}

// AddImage inserts an image, replacing any existing image with the same id.
func (s *Store) AddImage(img Image) {
	cp := img
	s.images[img.ID] = &cp
}

// Categories returns the live id -> name mapping. Callers must treat the
// result as read-only; use RenameCategory to change a name.
func (s *Store) Categories() map[int]string {
	return s.categories
}

// SetCategories replaces the category table.
func (s *Store) SetCategories(cats map[int]string) {
	s.categories = make(map[int]string, len(cats))
	for id, name := range cats {
		s.categories[id] = name
	}
	s.recomputeDerived(s.annotations)
}

// RenameCategory changes a category name and updates the derived
// category_name column of every annotation pointing at it.
func (s *Store) RenameCategory(id int, name string) {
	if _, ok := s.categories[id]; !ok {
		return
	}
	s.categories[id] = name
	for _, ann := range s.annotations {
		if ann.CategoryID == id {
			ann.CategoryName = name
		}
	}
}

// Annotations returns the live annotation table. Callers must treat the
// result as read-only.
func (s *Store) Annotations() []*Annotation {
	return s.annotations
}

// AnnotationsForImage returns the annotations belonging to one image.
func (s *Store) AnnotationsForImage(imageID int) []*Annotation {
	var out []*Annotation
	for _, ann := range s.annotations {
		if ann.ImageID == imageID {
			out = append(out, ann)
		}
	}
	return out
}

// AddAnnotation appends an annotation and computes its derived columns.
func (s *Store) AddAnnotation(ann Annotation) {
	cp := ann
	s.annotations = append(s.annotations, &cp)
	s.recomputeDerived(s.annotations[len(s.annotations)-1:])
}

// SetBBox replaces an annotation's bounding box and recomputes its
// derived columns.
func (s *Store) SetBBox(annID int, box geometry.BBox) {
	for _, ann := range s.annotations {
		if ann.ID == annID {
			ann.BBox = box
			s.recomputeDerived([]*Annotation{ann})
			return
		}
	}
}

// recomputeDerived refreshes the derived columns of the given annotation
// subset. Every mutation of bbox or the category mapping funnels through
// here; derived values are never hand-edited.
func (s *Store) recomputeDerived(anns []*Annotation) {
	for _, ann := range anns {
		ann.BBoxW = ann.BBox.Width
		ann.BBoxH = ann.BBox.Height
		ann.Area = ann.BBox.Area()
		ann.AspectRatio = ann.BBox.AspectRatio()
		if name, ok := s.categories[ann.CategoryID]; ok {
			ann.CategoryName = name
		} else {
			ann.CategoryName = strconv.Itoa(ann.CategoryID)
		}
	}
}

// Stats returns basic dataset counts. When no explicit categories exist,
// the class count falls back to the number of distinct category ids seen
// in the annotations.
func (s *Store) Stats() Summary {
	classes := len(s.categories)
	if classes == 0 && len(s.annotations) > 0 {
		seen := make(map[int]struct{})
		for _, ann := range s.annotations {
			seen[ann.CategoryID] = struct{}{}
		}
		classes = len(seen)
	}
	return Summary{
		TotalImages:    len(s.images),
		TotalInstances: len(s.annotations),
		TotalClasses:   classes,
	}
}

// ImageRoot returns the configured image root directory.
func (s *Store) ImageRoot() string {
	return s.imgRoot
}

// BasePath returns the dataset base path (YOLO datasets only).
func (s *Store) BasePath() string {
	return s.basePath
}

// SetBasePath records the dataset base path.
func (s *Store) SetBasePath(base string) {
	s.basePath = base
}

// MarkForExclusion marks an image for exclusion from export. No-op if the
// image does not exist.
func (s *Store) MarkForExclusion(imageID int) {
	if _, ok := s.images[imageID]; ok {
		s.excluded[imageID] = struct{}{}
	}
}

// UnmarkForExclusion removes an image from the exclusion set.
func (s *Store) UnmarkForExclusion(imageID int) {
	delete(s.excluded, imageID)
}

// IsExcluded reports whether an image is marked for exclusion.
func (s *Store) IsExcluded(imageID int) bool {
	_, ok := s.excluded[imageID]
	return ok
}

// ExcludedImages returns a copy of the exclusion set.
func (s *Store) ExcludedImages() map[int]struct{} {
	out := make(map[int]struct{}, len(s.excluded))
	for id := range s.excluded {
		out[id] = struct{}{}
	}
	return out
}

// ExportableImages returns the image table minus the exclusion set when
// excludeMarked is true, else all images. The store is not mutated; the
// returned map is freshly allocated but shares Image pointers.
func (s *Store) ExportableImages(excludeMarked bool) map[int]*Image {
	out := make(map[int]*Image, len(s.images))
	for id, img := range s.images {
		if excludeMarked {
			if _, marked := s.excluded[id]; marked {
				continue
			}
		}
		out[id] = img
	}
	return out
}

// RemoveImages removes the given images together with their annotations
// and drops their ids from the exclusion set, duplicate groups, and source
// tracking. The removal is applied as one batch so the four substructures
// stay consistent.
func (s *Store) RemoveImages(ids []int) {
	if len(ids) == 0 {
		return
	}
	doomed := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		doomed[id] = struct{}{}
	}

	for id := range doomed {
		delete(s.images, id)
		delete(s.excluded, id)
	}

	kept := s.annotations[:0]
	for _, ann := range s.annotations {
		if _, gone := doomed[ann.ImageID]; !gone {
			kept = append(kept, ann)
		}
	}
	s.annotations = kept

	var groups []map[int]struct{}
	for _, group := range s.dupGroups {
		survivors := make(map[int]struct{})
		for id := range group {
			if _, gone := doomed[id]; !gone {
				survivors[id] = struct{}{}
			}
		}
		// Groups of size <= 1 no longer describe a duplication.
		if len(survivors) > 1 {
			groups = append(groups, survivors)
		}
	}
	s.dupGroups = groups

	for name, members := range s.sources {
		for id := range doomed {
			delete(members, id)
		}
		if len(members) == 0 {
			delete(s.sources, name)
		}
	}
}

// AddSource tags images with a source label using union semantics. A nil
// id list tags every image currently in the store.
func (s *Store) AddSource(name string, imageIDs []int) {
	var ids []int
	if imageIDs == nil {
		ids = make([]int, 0, len(s.images))
		for id := range s.images {
			ids = append(ids, id)
		}
	} else {
		ids = imageIDs
	}

	members, ok := s.sources[name]
	if !ok {
		members = make(map[int]struct{})
		s.sources[name] = members
	}
	for _, id := range ids {
		members[id] = struct{}{}
		if img, exists := s.images[id]; exists {
			img.Source = name
		}
	}
}

// Sources returns the known source names, sorted.
func (s *Store) Sources() []string {
	names := make([]string, 0, len(s.sources))
	for name := range s.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SourceImageIDs returns the sorted image ids tagged with a source.
func (s *Store) SourceImageIDs(name string) []int {
	members, ok := s.sources[name]
	if !ok {
		return nil
	}
	ids := make([]int, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// SetDuplicateGroups replaces the duplicate groups, typically with the
// output of an external perceptual-hash scan. Groups keep their given
// order; members within a group are deduplicated.
func (s *Store) SetDuplicateGroups(groups [][]int) {
	s.dupGroups = s.dupGroups[:0]
	for _, group := range groups {
		set := make(map[int]struct{}, len(group))
		for _, id := range group {
			set[id] = struct{}{}
		}
		s.dupGroups = append(s.dupGroups, set)
	}
}

// DuplicateGroups returns the duplicate groups with members sorted.
func (s *Store) DuplicateGroups() [][]int {
	out := make([][]int, 0, len(s.dupGroups))
	for _, group := range s.dupGroups {
		ids := make([]int, 0, len(group))
		for id := range group {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		out = append(out, ids)
	}
	return out
}

// DuplicateGroupOf returns the sorted duplicate group containing the given
// image id, or nil if the image is not in any group.
func (s *Store) DuplicateGroupOf(imageID int) []int {
	for _, group := range s.dupGroups {
		if _, ok := group[imageID]; ok {
			ids := make([]int, 0, len(group))
			for id := range group {
				ids = append(ids, id)
			}
			sort.Ints(ids)
			return ids
		}
	}
	return nil
}

// SetImageRoot sets the image root directory and fills in absolute paths
// for images that do not already have a valid one. An absolute file_name
// is used as-is.
func (s *Store) SetImageRoot(root string) {
	s.imgRoot = root
	if root == "" {
		return
	}
	for _, img := range s.images {
		if img.AbsPath != "" && fileExists(img.AbsPath) {
			continue
		}
		img.AbsPath = resolveImagePath(root, img.FileName)
	}
}
