package storage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"adacta/internal/config"
	"adacta/internal/logging"
)

// Storage manages the bundle root directory. It holds no cache; bundles are
// always resolved from disk.
type Storage struct {
	root   string
	logger *slog.Logger

	locks sync.Map // uuid.UUID -> *sync.Mutex, serializes manifest writers
}

// Open prepares the storage root.
func Open(cfg *config.Config, logger *slog.Logger) (*Storage, error) {
	root := cfg.Paths.StorageDir
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("storage root not configured")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Storage{
		root:   root,
		logger: logging.NewComponentLogger(logger, "storage"),
	}, nil
}

// Root returns the storage root directory.
func (s *Storage) Root() string {
	return s.root
}

// CreateOption customizes bundle creation.
type CreateOption func(*createOptions)

type createOptions struct {
	id         uuid.UUID
	hasID      bool
	uploadedAt time.Time
	tags       []string
	properties map[string]string
}

// WithID creates the bundle under a caller-supplied document id.
func WithID(id uuid.UUID) CreateOption {
	return func(o *createOptions) {
		o.id = id
		o.hasID = true
	}
}

// WithUploadedAt overrides the upload timestamp (defaults to now).
func WithUploadedAt(t time.Time) CreateOption {
	return func(o *createOptions) {
		o.uploadedAt = t
	}
}

// WithTags seeds the manifest's tag set.
func WithTags(tags ...string) CreateOption {
	return func(o *createOptions) {
		o.tags = append(o.tags, tags...)
	}
}

// WithProperties seeds the manifest's property map.
func WithProperties(props map[string]string) CreateOption {
	return func(o *createOptions) {
		if o.properties == nil {
			o.properties = map[string]string{}
		}
		for k, v := range props {
			o.properties[k] = v
		}
	}
}

// Create allocates a bundle, writes every fragment, and persists an initial
// manifest. The bundle directory is staged hidden and renamed into place as
// the last step, so it only becomes discoverable once complete. A fragment
// named like the manifest is rejected; the manifest is always constructed.
func (s *Storage) Create(fragments map[string]io.Reader, opts ...CreateOption) (*Bundle, error) {
	options := createOptions{uploadedAt: time.Now()}
	for _, opt := range opts {
		opt(&options)
	}
	id := options.id
	if !options.hasID {
		id = uuid.New()
	}

	for name := range fragments {
		if err := validateFragmentName(name); err != nil {
			return nil, err
		}
		if name == FragmentManifest {
			return nil, fmt.Errorf("%w: %q is reserved", ErrInvalidFragmentName, FragmentManifest)
		}
	}

	final := filepath.Join(s.root, id.String())
	if _, err := os.Stat(final); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, id)
	}

	staging, err := os.MkdirTemp(s.root, ".create-*")
	if err != nil {
		return nil, fmt.Errorf("stage bundle: %w", err)
	}
	cleanup := true
	defer func() {
		if cleanup {
			os.RemoveAll(staging)
		}
	}()

	names := make([]string, 0, len(fragments))
	for name := range fragments {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writeFragment(filepath.Join(staging, name), fragments[name]); err != nil {
			return nil, fmt.Errorf("%w: write fragment %q: %w", ErrStorageFailure, name, err)
		}
	}

	manifest := NewManifest(id, options.uploadedAt)
	for _, tag := range options.tags {
		manifest.AddTag(tag)
	}
	for k, v := range options.properties {
		manifest.SetProperty(k, v)
	}
	if err := saveManifest(filepath.Join(staging, FragmentManifest), manifest); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}

	if err := os.Rename(staging, final); err != nil {
		if errors.Is(err, syscall.EEXIST) || errors.Is(err, syscall.ENOTEMPTY) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, id)
		}
		return nil, fmt.Errorf("%w: publish bundle: %w", ErrStorageFailure, err)
	}
	cleanup = false

	s.logger.Info("bundle created",
		logging.String(logging.FieldBundleID, id.String()),
		logging.Int("fragments", len(names)),
	)
	return &Bundle{storage: s, id: id}, nil
}

// Get resolves an existing bundle. The manifest file is the existence marker;
// a directory without one is treated as absent.
func (s *Storage) Get(id uuid.UUID) (*Bundle, error) {
	manifestPath := filepath.Join(s.root, id.String(), FragmentManifest)
	info, err := os.Stat(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("resolve bundle %s: %w", id, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &Bundle{storage: s, id: id}, nil
}

// Delete removes the bundle's entire subtree. Deleting an absent bundle is
// not an error.
func (s *Storage) Delete(id uuid.UUID) error {
	path := filepath.Join(s.root, id.String())
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("%w: delete bundle %s: %w", ErrStorageFailure, id, err)
	}
	s.locks.Delete(id)
	s.logger.Info("bundle deleted", logging.String(logging.FieldBundleID, id.String()))
	return nil
}

// List enumerates the ids of all complete bundles, sorted.
func (s *Storage) List() ([]uuid.UUID, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("list storage root: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		id, err := uuid.Parse(entry.Name())
		if err != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.root, entry.Name(), FragmentManifest)); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func (s *Storage) manifestLock(id uuid.UUID) *sync.Mutex {
	lock, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func writeFragment(path string, src io.Reader) error {
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if src != nil {
		if _, err := io.Copy(dst, src); err != nil {
			dst.Close()
			return err
		}
	}
	return dst.Close()
}
