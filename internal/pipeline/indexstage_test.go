package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"adacta/internal/pipeline"
	"adacta/internal/services"
	"adacta/internal/storage"
	"adacta/internal/testsupport"
)

type stubIndexer struct {
	indexed []string
	err     error
}

func (s *stubIndexer) Index(_ context.Context, bundle *storage.Bundle) error {
	if s.err != nil {
		return s.err
	}
	s.indexed = append(s.indexed, bundle.ID().String())
	return nil
}

func TestIndexTransformPublishesBundle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStorage(t, cfg)
	bundle := testsupport.NewBundle(t, store, "payload")

	indexer := &stubIndexer{}
	transform := pipeline.NewIndexTransform(indexer)
	if transform.Name() != "index" {
		t.Fatalf("Name = %q, want index", transform.Name())
	}

	if err := transform.Process(context.Background(), bundle); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(indexer.indexed) != 1 || indexer.indexed[0] != bundle.ID().String() {
		t.Fatalf("indexed = %v, want [%s]", indexer.indexed, bundle.ID())
	}
}

func TestIndexTransformWrapsIndexerErrors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStorage(t, cfg)
	bundle := testsupport.NewBundle(t, store, "payload")

	transform := pipeline.NewIndexTransform(&stubIndexer{err: errors.New("index offline")})
	if err := transform.Process(context.Background(), bundle); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("error = %v, want ErrTransient", err)
	}
}
