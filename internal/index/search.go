package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// tagSeparator joins aggregated tags in query results. Unit separator keeps
// tags containing spaces intact.
const tagSeparator = "\x1f"

// Query narrows a catalog search. All filled fields must match; an empty
// query returns the newest documents.
type Query struct {
	// Text is matched against the extracted document body via full-text
	// search. Multiple words all have to occur.
	Text string
	// Tags must all be present on the document. Matching ignores case.
	Tags []string
	// Limit caps the result count; zero applies the default of 50.
	Limit int
}

const defaultSearchLimit = 50

// Entry is one catalog search result.
type Entry struct {
	ID         uuid.UUID         `json:"id"`
	Uploaded   time.Time         `json:"uploaded"`
	Reviewed   *time.Time        `json:"reviewed,omitempty"`
	Tags       []string          `json:"tags"`
	Properties map[string]string `json:"properties"`
}

// Search returns cataloged documents matching the query, newest first.
func (ix *Index) Search(ctx context.Context, query Query) ([]Entry, error) {
	ctx = ensureContext(ctx)

	conditions := make([]string, 0, len(query.Tags)+1)
	args := make([]any, 0, len(query.Tags)+2)

	if match := ftsMatchExpr(query.Text); match != "" {
		conditions = append(conditions, "d.id IN (SELECT id FROM documents_fts WHERE documents_fts MATCH ?)")
		args = append(args, match)
	}
	for _, tag := range query.Tags {
		conditions = append(conditions, "EXISTS (SELECT 1 FROM document_tags t WHERE t.id = d.id AND t.tag = ?)")
		args = append(args, tagCaser.String(tag))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := query.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	args = append(args, limit)

	rows, err := ix.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT d.id, d.uploaded_at, d.reviewed_at, d.properties_json,
                (SELECT group_concat(tag, char(31)) FROM document_tags t WHERE t.id = d.id)
         FROM documents d
         %s
         ORDER BY d.uploaded_at DESC
         LIMIT ?`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Inbox returns documents that have not been marked reviewed, oldest first.
func (ix *Index) Inbox(ctx context.Context) ([]Entry, error) {
	ctx = ensureContext(ctx)

	rows, err := ix.db.QueryContext(ctx,
		`SELECT d.id, d.uploaded_at, d.reviewed_at, d.properties_json,
                (SELECT group_concat(tag, char(31)) FROM document_tags t WHERE t.id = d.id)
         FROM documents d
         WHERE d.reviewed_at IS NULL
         ORDER BY d.uploaded_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query inbox: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	entries := make([]Entry, 0, 16)
	for rows.Next() {
		var (
			rawID      string
			uploaded   string
			reviewed   sql.NullString
			propsJSON  string
			joinedTags sql.NullString
		)
		if err := rows.Scan(&rawID, &uploaded, &reviewed, &propsJSON, &joinedTags); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}

		entry, err := buildEntry(rawID, uploaded, reviewed, propsJSON, joinedTags)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

func buildEntry(rawID, uploaded string, reviewed sql.NullString, propsJSON string, joinedTags sql.NullString) (Entry, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return Entry{}, fmt.Errorf("parse document id %q: %w", rawID, err)
	}
	uploadedAt, err := time.Parse(time.RFC3339Nano, uploaded)
	if err != nil {
		return Entry{}, fmt.Errorf("parse uploaded_at for %s: %w", rawID, err)
	}

	entry := Entry{
		ID:         id,
		Uploaded:   uploadedAt,
		Tags:       []string{},
		Properties: map[string]string{},
	}
	if reviewed.Valid {
		reviewedAt, err := time.Parse(time.RFC3339Nano, reviewed.String)
		if err != nil {
			return Entry{}, fmt.Errorf("parse reviewed_at for %s: %w", rawID, err)
		}
		entry.Reviewed = &reviewedAt
	}
	if propsJSON != "" {
		if err := json.Unmarshal([]byte(propsJSON), &entry.Properties); err != nil {
			return Entry{}, fmt.Errorf("unmarshal properties for %s: %w", rawID, err)
		}
	}
	if joinedTags.Valid && joinedTags.String != "" {
		entry.Tags = strings.Split(joinedTags.String, tagSeparator)
	}
	return entry, nil
}

// ftsMatchExpr turns free-form user input into an FTS5 match expression.
// Each word becomes a quoted term so punctuation in the input cannot change
// the query structure.
func ftsMatchExpr(text string) string {
	fields := strings.Fields(tagCaser.String(text))
	if len(fields) == 0 {
		return ""
	}
	terms := make([]string, len(fields))
	for i, field := range fields {
		terms[i] = `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}
