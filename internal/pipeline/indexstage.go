package pipeline

import (
	"context"

	"adacta/internal/services"
	"adacta/internal/storage"
)

// Indexer records a bundle in the search index.
type Indexer interface {
	Index(ctx context.Context, bundle *storage.Bundle) error
}

// IndexTransform is the terminal stage: it publishes the bundle's manifest
// and extracted text to the search index.
type IndexTransform struct {
	indexer Indexer
}

// NewIndexTransform wires the index stage to the given indexer.
func NewIndexTransform(indexer Indexer) *IndexTransform {
	return &IndexTransform{indexer: indexer}
}

func (t *IndexTransform) Name() string {
	return "index"
}

func (t *IndexTransform) Process(ctx context.Context, bundle *storage.Bundle) error {
	if err := t.indexer.Index(ctx, bundle); err != nil {
		return services.Wrap(services.ErrTransient, "index", "publish to search index", "", err)
	}
	return nil
}
