// Package config loads, normalizes, and validates convoy configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CONVOY_WATCH_DIR and CONVOY_NTFY_TOPIC. The Config type centralizes every
// knob the batch and watch commands need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical extensions, and clear validation errors.
package config
