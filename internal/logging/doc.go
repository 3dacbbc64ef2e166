// Package logging constructs the slog loggers used across the daemon and CLI
// and standardizes the structured field vocabulary (component, bundle_id,
// stage). Console and JSON output formats are supported; file outputs are
// appended alongside stdout when a log directory is configured.
package logging
