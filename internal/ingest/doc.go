// Package ingest watches a hot folder and turns dropped files into bundles.
//
// Files are given a settle delay after the last filesystem event before they
// are picked up, so partially copied documents are not ingested mid-write.
// A successfully ingested file is removed from the hot folder; a file that
// fails ingestion stays put and is retried on the next rescan.
package ingest
