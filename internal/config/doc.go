// Package config loads and validates the plexparity configuration file.
//
// Configuration is TOML with explicit sections per subsystem (plex, tmdb,
// scan, paths, logging). Load resolves the file path, merges the file over
// repository defaults, expands home-relative paths, and validates the
// result. Every recognized key is a struct field; unknown keys are ignored
// by the decoder rather than accumulating in loose maps.
package config
