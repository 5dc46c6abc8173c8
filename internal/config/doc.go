// Package config loads, normalizes, and validates relocate configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the RELOCATE_LOG_LEVEL environment
// fallback. The Config type is built once at startup and describes the ordered
// list of resources to migrate together with the durable state locations.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, canonical log formats, and clear validation errors.
package config
