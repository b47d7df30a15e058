// Package session provides curation-session file handling and persistence.
// A session records the source provenance, exclusion marks, and duplicate
// groups built up while curating a loaded dataset, so UI glue can restore
// them after reloading the same sources.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"detlab/internal/dataset"
)

// File represents a curation session file (.dlsession).
type File struct {
	Version  int       `json:"version"`
	Name     string    `json:"name"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`

	// Source dataset paths in load order, keyed by source label.
	SourcePaths map[string]string `json:"source_paths,omitempty"`

	// Curation state, by image id.
	Sources          map[string][]int `json:"sources,omitempty"`
	ExcludedImageIDs []int            `json:"excluded_image_ids,omitempty"`
	DuplicateGroups  [][]int          `json:"duplicate_groups,omitempty"`
}

// New creates a new empty session.
func New(name string) *File {
	now := time.Now()
	return &File{
		Version:  1,
		Name:     name,
		Created:  now,
		Modified: now,
	}
}

// Capture records the curation state of a store into a new session.
func Capture(store *dataset.Store, name string) *File {
	f := New(name)

	excluded := make([]int, 0)
	for id := range store.ExcludedImages() {
		excluded = append(excluded, id)
	}
	sort.Ints(excluded)
	f.ExcludedImageIDs = excluded

	f.DuplicateGroups = store.DuplicateGroups()

	sources := make(map[string][]int)
	for _, name := range store.Sources() {
		sources[name] = store.SourceImageIDs(name)
	}
	if len(sources) > 0 {
		f.Sources = sources
	}
	return f
}

// Apply restores the session's curation state onto a store. Exclusion
// marks for images the store no longer has are dropped by the store's own
// existence check.
func (f *File) Apply(store *dataset.Store) {
	for name, ids := range f.Sources {
		store.AddSource(name, ids)
	}
	for _, id := range f.ExcludedImageIDs {
		store.MarkForExclusion(id)
	}
	if len(f.DuplicateGroups) > 0 {
		store.SetDuplicateGroups(f.DuplicateGroups)
	}
}

// Load loads a session from a file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", path, err)
	}
	return &f, nil
}

// Save saves the session to a file.
func (f *File) Save(path string) error {
	f.Modified = time.Now()

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
