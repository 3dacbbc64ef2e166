package testsupport

import (
	"io"
	"strings"
	"testing"

	"adacta/internal/config"
	"adacta/internal/logging"
	"adacta/internal/storage"
)

// MustOpenStorage opens a storage.Storage rooted under the test config.
func MustOpenStorage(t testing.TB, cfg *config.Config) *storage.Storage {
	t.Helper()

	store, err := storage.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	return store
}

// NewBundle creates a bundle with a single document fragment holding the
// provided content.
func NewBundle(t testing.TB, store *storage.Storage, content string, opts ...storage.CreateOption) *storage.Bundle {
	t.Helper()

	bundle, err := store.Create(map[string]io.Reader{
		storage.FragmentDocument: strings.NewReader(content),
	}, opts...)
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return bundle
}
