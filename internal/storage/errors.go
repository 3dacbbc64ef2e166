package storage

import "errors"

var (
	// ErrNotFound indicates that no bundle exists for the requested id.
	ErrNotFound = errors.New("bundle not found")
	// ErrAlreadyExists indicates a bundle id collision during creation.
	ErrAlreadyExists = errors.New("bundle already exists")
	// ErrStorageFailure indicates a write failure during bundle creation or
	// deletion. No partially written bundle is left discoverable.
	ErrStorageFailure = errors.New("storage failure")
	// ErrFragmentNotFound indicates a missing fragment within an existing bundle.
	ErrFragmentNotFound = errors.New("fragment not found")
	// ErrInvalidFragmentName rejects fragment names that would escape the
	// bundle directory or collide with staging files.
	ErrInvalidFragmentName = errors.New("invalid fragment name")
	// ErrManifestConflict indicates a stale manifest save: the on-disk
	// revision advanced since the manifest was loaded.
	ErrManifestConflict = errors.New("manifest revision conflict")
)
