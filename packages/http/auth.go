package http

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// AuthScheme selects how credentials are presented.
type AuthScheme int

const (
	AuthBasic AuthScheme = iota
	AuthDigest
)

func (s AuthScheme) String() string {
	if s == AuthDigest {
		return "digest"
	}
	return "basic"
}

// Credentials are a username and password for one scheme.
type Credentials struct {
	Username string
	Password string
	Scheme   AuthScheme
}

// basicAuthorization returns the Authorization value for Basic auth.
func basicAuthorization(user, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}

// validateCredentials rejects usernames that Basic auth cannot carry.
func validateCredentials(c *Credentials) error {
	if c == nil {
		return nil
	}
	if c.Scheme == AuthBasic && strings.Contains(c.Username, ":") {
		return fmt.Errorf("basic auth username must not contain a colon")
	}
	return nil
}
