// Package config loads, normalizes, and validates shikiwatch configuration data.
//
// It supplies repository defaults rooted at the XDG base directories, expands
// user paths (including tilde shortcuts), reads TOML files, and honours
// environment fallbacks such as SHIKIMORI_ACCESS_TOKEN. The Config type
// centralizes every knob the daemon and CLI need so the player monitor,
// caches, and remote client are configured in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
