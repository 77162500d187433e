// Package http is the hitwire client engine.
//
// A Client turns a Request into wire bytes, pushes them through a transport
// adapter (see package adapter) and parses the raw reply into a Response.
// Around that exchange it handles:
//   - Redirects (301, 302, 303, 307, 308) with a bounded hop count
//   - Basic and Digest authentication
//   - Content-Encoding (gzip, deflate), decoded exactly once
//   - Native redirect delegation to adapters that can follow by themselves
//
// A Client is not safe for concurrent use.
package http
