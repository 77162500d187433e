// Package capture extracts values from HTTP responses.
//
// It supports capturing values from:
//   - Response body (gjson paths)
//   - Response headers, including repeated ones
//   - Response status code and duration
//
// The CLI uses it for --query and --capture.
package capture
