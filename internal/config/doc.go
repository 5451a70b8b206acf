// Package config loads, validates, and normalizes murmur's TOML
// configuration.
package config
