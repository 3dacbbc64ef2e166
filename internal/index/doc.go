// Package index maintains the searchable catalog of processed bundles.
//
// The catalog is a SQLite database with an FTS5 table over the extracted
// document text. It is derived data: the bundles on disk remain the source
// of truth, and the whole database can be rebuilt by re-running the index
// stage over every bundle.
package index
