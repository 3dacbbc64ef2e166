package index_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"adacta/internal/config"
	"adacta/internal/index"
	"adacta/internal/logging"
	"adacta/internal/storage"
	"adacta/internal/testsupport"
)

func mustOpenIndex(t *testing.T, cfg *config.Config) *index.Index {
	t.Helper()
	ix, err := index.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("index.Open: %v", err)
	}
	t.Cleanup(func() { ix.Close() })
	return ix
}

func newTextBundle(t *testing.T, store *storage.Storage, text string, opts ...storage.CreateOption) *storage.Bundle {
	t.Helper()
	bundle, err := store.Create(map[string]io.Reader{
		storage.FragmentDocument: strings.NewReader("%PDF-1.4 stub"),
		storage.FragmentText:     strings.NewReader(text),
	}, opts...)
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return bundle
}

func TestIndexAndSearchByText(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStorage(t, cfg)
	ix := mustOpenIndex(t, cfg)
	ctx := context.Background()

	invoice := newTextBundle(t, store, "Invoice 2026-001 electricity charges")
	letter := newTextBundle(t, store, "Dear resident, your lease renews soon")

	if err := ix.Index(ctx, invoice); err != nil {
		t.Fatalf("Index invoice: %v", err)
	}
	if err := ix.Index(ctx, letter); err != nil {
		t.Fatalf("Index letter: %v", err)
	}

	entries, err := ix.Search(ctx, index.Query{Text: "electricity"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != invoice.ID() {
		t.Fatalf("Search(electricity) = %v, want only invoice %s", entries, invoice.ID())
	}

	entries, err = ix.Search(ctx, index.Query{Text: "submarine"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("Search(submarine) returned %d entries, want none", len(entries))
	}
}

func TestSearchByTagIgnoresCase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStorage(t, cfg)
	ix := mustOpenIndex(t, cfg)
	ctx := context.Background()

	tagged := newTextBundle(t, store, "annual report", storage.WithTags("Finance"))
	other := newTextBundle(t, store, "meeting notes")

	if err := ix.Index(ctx, tagged); err != nil {
		t.Fatalf("Index tagged: %v", err)
	}
	if err := ix.Index(ctx, other); err != nil {
		t.Fatalf("Index other: %v", err)
	}

	entries, err := ix.Search(ctx, index.Query{Tags: []string{"finance"}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != tagged.ID() {
		t.Fatalf("tag search = %v, want only %s", entries, tagged.ID())
	}
}

func TestInboxListsUnreviewedOldestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStorage(t, cfg)
	ix := mustOpenIndex(t, cfg)
	ctx := context.Background()

	older := newTextBundle(t, store, "first",
		storage.WithUploadedAt(time.Now().Add(-2*time.Hour)))
	newer := newTextBundle(t, store, "second",
		storage.WithUploadedAt(time.Now().Add(-time.Hour)))
	reviewed := newTextBundle(t, store, "third")
	if _, err := reviewed.UpdateManifest(func(m *storage.Manifest) error {
		m.MarkReviewed(time.Now())
		return nil
	}); err != nil {
		t.Fatalf("UpdateManifest: %v", err)
	}

	for _, bundle := range []*storage.Bundle{older, newer, reviewed} {
		if err := ix.Index(ctx, bundle); err != nil {
			t.Fatalf("Index %s: %v", bundle.ID(), err)
		}
	}

	inbox, err := ix.Inbox(ctx)
	if err != nil {
		t.Fatalf("Inbox: %v", err)
	}
	if len(inbox) != 2 {
		t.Fatalf("inbox holds %d entries, want 2", len(inbox))
	}
	if inbox[0].ID != older.ID() || inbox[1].ID != newer.ID() {
		t.Fatalf("inbox order = [%s %s], want [%s %s]", inbox[0].ID, inbox[1].ID, older.ID(), newer.ID())
	}
}

func TestReindexRefreshesEntry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStorage(t, cfg)
	ix := mustOpenIndex(t, cfg)
	ctx := context.Background()

	bundle := newTextBundle(t, store, "draft")
	if err := ix.Index(ctx, bundle); err != nil {
		t.Fatalf("Index: %v", err)
	}

	if _, err := bundle.UpdateManifest(func(m *storage.Manifest) error {
		m.AddTag("archived")
		return nil
	}); err != nil {
		t.Fatalf("UpdateManifest: %v", err)
	}
	if err := ix.Index(ctx, bundle); err != nil {
		t.Fatalf("re-Index: %v", err)
	}

	entries, err := ix.Search(ctx, index.Query{Tags: []string{"archived"}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("search after reindex = %d entries, want 1", len(entries))
	}
	if count, err := ix.Count(ctx); err != nil || count != 1 {
		t.Fatalf("Count = %d (%v), want 1 after reindex", count, err)
	}
}

func TestRemoveDropsEntry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStorage(t, cfg)
	ix := mustOpenIndex(t, cfg)
	ctx := context.Background()

	bundle := newTextBundle(t, store, "transient document")
	if err := ix.Index(ctx, bundle); err != nil {
		t.Fatalf("Index: %v", err)
	}
	if err := ix.Remove(ctx, bundle.ID()); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	entries, err := ix.Search(ctx, index.Query{Text: "transient"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("removed document still searchable: %v", entries)
	}

	// Removing again is a no-op.
	if err := ix.Remove(ctx, bundle.ID()); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
}
