// Package cmd implements the hitwire CLI commands using Cobra.
//
// Available commands:
//   - send: Send one request and print the response
//   - bench: Send the same request repeatedly and report latency
//   - init: Write a .hitwire.yaml with the default settings
//   - version: Show hitwire version information
//   - completion: Generate shell completion scripts
//
// Flags fall back to HITWIRE_* environment variables, then to the config
// file, then to the built-in defaults.
package cmd
