package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"adacta/internal/fileutil"
)

// Reserved fragment names. The vocabulary is open beyond these.
const (
	FragmentManifest  = "manifest.json"
	FragmentDocument  = "document.pdf"
	FragmentText      = "document.txt"
	FragmentThumbnail = "thumbnail.png"
	FragmentLog       = "log"
)

// Bundle is a handle over one document directory. It carries no cached state;
// every accessor resolves from disk.
type Bundle struct {
	storage *Storage
	id      uuid.UUID
}

// ID returns the bundle's document identifier.
func (b *Bundle) ID() uuid.UUID {
	return b.id
}

// Path returns the bundle's directory under the storage root.
func (b *Bundle) Path() string {
	return filepath.Join(b.storage.root, b.id.String())
}

// FragmentPath resolves the on-disk path of a named fragment without
// requiring it to exist.
func (b *Bundle) FragmentPath(name string) (string, error) {
	if err := validateFragmentName(name); err != nil {
		return "", err
	}
	return filepath.Join(b.Path(), name), nil
}

// OpenFragment opens a fragment for reading.
func (b *Bundle) OpenFragment(name string) (io.ReadCloser, error) {
	path, err := b.FragmentPath(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrFragmentNotFound, b.id, name)
		}
		return nil, err
	}
	return f, nil
}

// HasFragment reports whether the named fragment exists.
func (b *Bundle) HasFragment(name string) bool {
	path, err := b.FragmentPath(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Fragments lists the bundle's fragment names, sorted. The manifest counts as
// a fragment, matching the on-disk reality.
func (b *Bundle) Fragments() ([]string, error) {
	entries, err := os.ReadDir(b.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, b.id)
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// LoadManifest reads the bundle's manifest from disk.
func (b *Bundle) LoadManifest() (*Manifest, error) {
	return loadManifest(filepath.Join(b.Path(), FragmentManifest))
}

// SaveManifest persists the manifest wholesale. The save is atomic and
// optimistic: it fails with ErrManifestConflict when the on-disk revision no
// longer matches the revision the manifest was loaded with.
func (b *Bundle) SaveManifest(m *Manifest) error {
	lock := b.storage.manifestLock(b.id)
	lock.Lock()
	defer lock.Unlock()

	path := filepath.Join(b.Path(), FragmentManifest)
	current, err := loadManifest(path)
	if err != nil {
		return err
	}
	if current.Revision != m.Revision {
		return fmt.Errorf("%w: bundle %s: disk revision %d, manifest revision %d",
			ErrManifestConflict, b.id, current.Revision, m.Revision)
	}
	m.Revision++
	if err := saveManifest(path, m); err != nil {
		m.Revision--
		return err
	}
	return nil
}

// UpdateManifest applies fn inside a load-save cycle, retrying once when a
// concurrent writer advanced the revision in between.
func (b *Bundle) UpdateManifest(fn func(*Manifest) error) (*Manifest, error) {
	const attempts = 2
	var lastErr error
	for i := 0; i < attempts; i++ {
		m, err := b.LoadManifest()
		if err != nil {
			return nil, err
		}
		if err := fn(m); err != nil {
			return nil, err
		}
		if err := b.SaveManifest(m); err != nil {
			if errors.Is(err, ErrManifestConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return m, nil
	}
	return nil, lastErr
}

// AppendLog appends a timestamped line to the bundle's processing log.
// The log fragment is append-only; retries accumulate, never truncate.
func (b *Bundle) AppendLog(line string) error {
	path, err := b.FragmentPath(FragmentLog)
	if err != nil {
		return err
	}
	record := fmt.Sprintf("[%s] %s\n", time.Now().UTC().Format(time.RFC3339), strings.TrimRight(line, "\n"))
	return fileutil.AppendFile(path, []byte(record))
}

// LogWriter returns an append-mode writer over the log fragment, suitable for
// capturing external tool output. The caller must close it.
func (b *Bundle) LogWriter() (io.WriteCloser, error) {
	path, err := b.FragmentPath(FragmentLog)
	if err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func validateFragmentName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidFragmentName, name)
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidFragmentName, name)
	}
	if strings.ContainsAny(name, "/\\") || name != filepath.Base(name) {
		return fmt.Errorf("%w: %q", ErrInvalidFragmentName, name)
	}
	return nil
}
