package http

import (
	"fmt"
	"net/url"
	"strings"
)

// NativeRedirectMode controls whether an adapter that can follow redirects by
// itself is allowed to.
type NativeRedirectMode int

const (
	// NativeRedirectsAuto follows in the client, hop by hop, so every redirect
	// is counted and the limit raises TooManyRedirectsError.
	NativeRedirectsAuto NativeRedirectMode = iota
	// NativeRedirectsOff always follows in the client.
	NativeRedirectsOff
	// NativeRedirectsForce lets the adapter follow by itself. The hops are
	// invisible to the client: RedirectionsCount stays at zero and the
	// adapter's own limit applies.
	NativeRedirectsForce
)

func (m NativeRedirectMode) String() string {
	switch m {
	case NativeRedirectsOff:
		return "off"
	case NativeRedirectsForce:
		return "force"
	default:
		return "auto"
	}
}

// ParseNativeRedirectMode parses "auto", "off" or "force".
func ParseNativeRedirectMode(s string) (NativeRedirectMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return NativeRedirectsAuto, nil
	case "off", "false", "no":
		return NativeRedirectsOff, nil
	case "force", "on", "true":
		return NativeRedirectsForce, nil
	}
	return NativeRedirectsAuto, fmt.Errorf("invalid native redirect mode %q (expected auto, off or force)", s)
}

// NativeRedirectsAllowed reports whether a request is safe to hand to an
// adapter's own redirect following. Only bodiless GET and HEAD requests
// without credentials qualify: adapters differ in how they replay bodies and
// whether they forward credentials to other hosts. A forced request that
// fails this check is still handed over, with a logged warning.
func NativeRedirectsAllowed(method string, hasBody, hasAuth bool) bool {
	if hasBody || hasAuth {
		return false
	}
	m := strings.ToUpper(method)
	return m == "GET" || m == "HEAD"
}

func isRedirectStatus(code int) bool {
	switch code {
	case 301, 302, 303, 307, 308:
		return true
	}
	return false
}

// redirectMethod returns the method for the next hop and whether the body is
// carried over.
func redirectMethod(method string, code int) (string, bool) {
	method = strings.ToUpper(method)
	switch code {
	case 303:
		if method == "HEAD" {
			return method, false
		}
		return "GET", false
	case 301, 302:
		if method == "POST" {
			return "GET", false
		}
		return method, true
	default:
		return method, true
	}
}

// resolveLocation resolves a Location header against the current URL.
func resolveLocation(current *url.URL, location string) (*url.URL, error) {
	loc, err := url.Parse(strings.TrimSpace(location))
	if err != nil {
		return nil, fmt.Errorf("invalid Location %q: %w", location, err)
	}
	next := current.ResolveReference(loc)
	if next.Scheme != "http" && next.Scheme != "https" {
		return nil, fmt.Errorf("unsupported redirect scheme %q", next.Scheme)
	}
	return next, nil
}
