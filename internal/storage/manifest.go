package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"adacta/internal/fileutil"
)

// Manifest is the JSON metadata record attached to every bundle.
type Manifest struct {
	ID       uuid.UUID  `json:"id"`
	Uploaded time.Time  `json:"uploaded"`
	Reviewed *time.Time `json:"reviewed,omitempty"`
	// Tags carries set semantics: sorted, no duplicates. Normalized on save.
	Tags       []string          `json:"tags"`
	Properties map[string]string `json:"properties"`
	// Revision increments on every save and detects stale writers.
	Revision int64 `json:"revision"`
}

// NewManifest constructs a manifest for a freshly created bundle.
func NewManifest(id uuid.UUID, uploaded time.Time) *Manifest {
	return &Manifest{
		ID:         id,
		Uploaded:   uploaded.UTC(),
		Tags:       []string{},
		Properties: map[string]string{},
	}
}

// AddTag inserts a tag, preserving set semantics. Returns true if it was new.
func (m *Manifest) AddTag(tag string) bool {
	for _, existing := range m.Tags {
		if existing == tag {
			return false
		}
	}
	m.Tags = append(m.Tags, tag)
	sort.Strings(m.Tags)
	return true
}

// RemoveTag deletes a tag. Returns true if it was present.
func (m *Manifest) RemoveTag(tag string) bool {
	for i, existing := range m.Tags {
		if existing == tag {
			m.Tags = append(m.Tags[:i], m.Tags[i+1:]...)
			return true
		}
	}
	return false
}

// HasTag reports whether the tag is assigned.
func (m *Manifest) HasTag(tag string) bool {
	for _, existing := range m.Tags {
		if existing == tag {
			return true
		}
	}
	return false
}

// SetProperty assigns an arbitrary caller-defined property.
func (m *Manifest) SetProperty(key, value string) {
	if m.Properties == nil {
		m.Properties = map[string]string{}
	}
	m.Properties[key] = value
}

// MarkReviewed records the review timestamp. A zero time clears it.
func (m *Manifest) MarkReviewed(at time.Time) {
	if at.IsZero() {
		m.Reviewed = nil
		return
	}
	utc := at.UTC()
	m.Reviewed = &utc
}

func (m *Manifest) normalize() {
	if m.Tags == nil {
		m.Tags = []string{}
	}
	sort.Strings(m.Tags)
	deduped := m.Tags[:0]
	var last string
	for i, tag := range m.Tags {
		if tag == "" || (i > 0 && tag == last) {
			continue
		}
		deduped = append(deduped, tag)
		last = tag
	}
	m.Tags = deduped
	if m.Properties == nil {
		m.Properties = map[string]string{}
	}
}

func loadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	m.normalize()
	return &m, nil
}

func saveManifest(path string, m *Manifest) error {
	m.normalize()
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
