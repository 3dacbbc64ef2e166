// Package daemon coordinates the long-running adacta process and system
// integration points.
//
// It wires configuration, bundle storage, the processing pipeline, the
// search catalog, and the ingest watcher into a single lifecycle with
// flock-based locking to prevent multiple instances, and serves the HTTP
// API the CLI talks to.
//
// Keep orchestration logic here: individual processing steps should live in
// their respective packages while the daemon focuses on startup, shutdown,
// and high level coordination.
package daemon
