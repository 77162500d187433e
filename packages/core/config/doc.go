// Package config handles configuration loading and management for hitwire.
//
// It provides functionality for:
//   - Loading configuration from .hitwire.yaml, .hitwire.yml or .hitwire.json
//   - Default configuration values
//   - Layering CLI overrides on top of file settings
//   - Converting the result into http.ClientOption values
package config
