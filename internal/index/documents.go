package index

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"adacta/internal/logging"
	"adacta/internal/storage"
)

// tagCaser folds tags for case-insensitive matching. Tags are stored folded;
// the manifest keeps the original spelling.
var tagCaser = cases.Fold()

// Index records or refreshes the bundle's catalog entry. The manifest and,
// when present, the extracted text fragment are read from the bundle; a
// bundle whose text stage has not run yet is indexed with an empty body.
func (ix *Index) Index(ctx context.Context, bundle *storage.Bundle) error {
	ctx = ensureContext(ctx)

	manifest, err := bundle.LoadManifest()
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}

	body := ""
	if bundle.HasFragment(storage.FragmentText) {
		r, err := bundle.OpenFragment(storage.FragmentText)
		if err != nil {
			return fmt.Errorf("open text fragment: %w", err)
		}
		data, err := io.ReadAll(r)
		_ = r.Close()
		if err != nil {
			return fmt.Errorf("read text fragment: %w", err)
		}
		body = string(data)
	}

	propsJSON, err := json.Marshal(manifest.Properties)
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}

	id := manifest.ID.String()
	uploaded := manifest.Uploaded.UTC().Format(time.RFC3339Nano)
	var reviewed any
	if manifest.Reviewed != nil {
		reviewed = manifest.Reviewed.UTC().Format(time.RFC3339Nano)
	}
	indexedAt := time.Now().UTC().Format(time.RFC3339Nano)

	return retryOnBusy(ctx, func() error {
		tx, err := ix.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin index tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO documents (id, uploaded_at, reviewed_at, properties_json, indexed_at)
             VALUES (?, ?, ?, ?, ?)
             ON CONFLICT(id) DO UPDATE SET
                 uploaded_at = excluded.uploaded_at,
                 reviewed_at = excluded.reviewed_at,
                 properties_json = excluded.properties_json,
                 indexed_at = excluded.indexed_at`,
			id, uploaded, reviewed, string(propsJSON), indexedAt,
		); err != nil {
			return fmt.Errorf("upsert document: %w", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM document_tags WHERE id = ?", id); err != nil {
			return fmt.Errorf("clear tags: %w", err)
		}
		for _, tag := range manifest.Tags {
			if _, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO document_tags (id, tag) VALUES (?, ?)",
				id, tagCaser.String(tag),
			); err != nil {
				return fmt.Errorf("insert tag %q: %w", tag, err)
			}
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM documents_fts WHERE id = ?", id); err != nil {
			return fmt.Errorf("clear fts row: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO documents_fts (id, body) VALUES (?, ?)", id, body,
		); err != nil {
			return fmt.Errorf("insert fts row: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit index tx: %w", err)
		}
		return nil
	})
}

// Remove drops the bundle's catalog entry. Removing an unknown id is a no-op.
func (ix *Index) Remove(ctx context.Context, id uuid.UUID) error {
	ctx = ensureContext(ctx)
	if err := ix.execWithRetry(ctx, "DELETE FROM documents WHERE id = ?", id.String()); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if err := ix.execWithRetry(ctx, "DELETE FROM documents_fts WHERE id = ?", id.String()); err != nil {
		return fmt.Errorf("delete fts row: %w", err)
	}
	ix.logger.Debug("catalog entry removed", logging.String(logging.FieldBundleID, id.String()))
	return nil
}

// Count reports the number of cataloged documents.
func (ix *Index) Count(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)
	var count int
	if err := ix.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM documents").Scan(&count); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}
