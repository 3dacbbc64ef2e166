// Package config loads, normalizes, and validates adacta configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ADACTA_API_TOKEN. The Config type centralizes every knob the daemon and CLI
// need: storage and pipeline directories, the search index location, external
// converter binaries, and retry policy.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
