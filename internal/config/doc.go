// Package config loads and validates the YAML configuration for the
// transcriber. Every section carries its own Validate method; a config that
// loads without error is safe to run with.
package config
