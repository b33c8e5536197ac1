// Package config loads, normalizes, and validates vsplit configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// VSPLIT_STORAGE_TOKEN. The Config type centralizes every knob the CLI and the
// split pipeline need: staging and publish directories, default encoding
// settings, the object store backend, and external tool binaries.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
