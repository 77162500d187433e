// Package header implements the RFC 7230 header model used by hitwire.
//
// A Field is a single validated "Name: Value" pair. Validation runs on every
// entry point (Parse, New, SetName, SetValue), so a field holding a CR or LF
// in its value, or a name outside the token grammar, can never be built.
// This closes the request/response splitting vector at construction time.
//
// Headers is an ordered set of fields with case-insensitive name lookup.
package header
