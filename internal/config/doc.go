// Package config loads, normalizes, and validates smoothieq configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SMOOTHIE_EXECUTABLE and SMOOTHIE_RECIPE. The Config type centralizes every
// knob the daemon and CLI need so the smoothie-rs installation, queue defaults,
// and state directories are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
