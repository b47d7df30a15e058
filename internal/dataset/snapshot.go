package dataset

// Snapshot is an immutable deep copy of a store's core tables, handed to
// background analysis tasks so they never touch shared state. Results flow
// back through explicit setters on the live store (for example
// SetDuplicateGroups), never by mutating a snapshot.
type Snapshot struct {
	Images      map[int]Image
	Categories  map[int]string
	Annotations []Annotation
	ImageRoot   string
}

// Snapshot returns a deep copy of the store's images, categories, and
// annotations.
func (s *Store) Snapshot() *Snapshot {
	snap := &Snapshot{
		Images:      make(map[int]Image, len(s.images)),
		Categories:  make(map[int]string, len(s.categories)),
		Annotations: make([]Annotation, len(s.annotations)),
		ImageRoot:   s.imgRoot,
	}
	for id, img := range s.images {
		snap.Images[id] = *img
	}
	for id, name := range s.categories {
		snap.Categories[id] = name
	}
	for i, ann := range s.annotations {
		snap.Annotations[i] = *ann
	}
	return snap
}
