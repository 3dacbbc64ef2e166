// Package services defines shared utilities consumed by the pipeline stages
// and the HTTP layer.
//
// Key responsibilities:
//   - Context helpers that stamp bundle identifiers, stage names, and request
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification (not found vs storage vs external tool) uniform across
//     the daemon.
package services
