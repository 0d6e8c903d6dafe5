// Package config loads, normalizes, and validates the TOML configuration
// for the render pipeline: external tool locations, staging/log
// directories, and default render parameters.
package config
