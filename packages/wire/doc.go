// Package wire holds the HTTP/1.x framing shared by the adapters and the
// client engine: status line parsing, raw response framing, chunked
// transfer-coding and request serialization.
package wire
