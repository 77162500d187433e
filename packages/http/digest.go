package http

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// DigestChallenge is the parsed content of a "WWW-Authenticate: Digest" header.
type DigestChallenge struct {
	Realm     string
	Nonce     string
	Opaque    string
	Qop       string
	Algorithm string
}

// IsDigestChallenge reports whether a WWW-Authenticate value uses the Digest scheme.
func IsDigestChallenge(value string) bool {
	scheme, _, _ := strings.Cut(strings.TrimSpace(value), " ")
	return strings.EqualFold(scheme, "Digest")
}

// ParseDigestChallenge parses the parameters of a Digest challenge. Quoted
// values may contain commas.
func ParseDigestChallenge(value string) DigestChallenge {
	value = strings.TrimSpace(value)
	if IsDigestChallenge(value) {
		_, value, _ = strings.Cut(value, " ")
	}

	params := make(map[string]string)
	for len(value) > 0 {
		value = strings.TrimLeft(value, " \t,")
		key, rest, ok := strings.Cut(value, "=")
		if !ok {
			break
		}
		key = strings.ToLower(strings.TrimSpace(key))
		rest = strings.TrimLeft(rest, " \t")
		var v string
		if strings.HasPrefix(rest, `"`) {
			end := strings.Index(rest[1:], `"`)
			if end < 0 {
				v, rest = rest[1:], ""
			} else {
				v, rest = rest[1:end+1], rest[end+2:]
			}
		} else {
			v, rest, _ = strings.Cut(rest, ",")
			v = strings.TrimSpace(v)
		}
		params[key] = v
		value = rest
	}

	return DigestChallenge{
		Realm:     params["realm"],
		Nonce:     params["nonce"],
		Opaque:    params["opaque"],
		Qop:       params["qop"],
		Algorithm: params["algorithm"],
	}
}

// digestAuthorization builds the Authorization value answering ch for one
// request. Only the "auth" quality of protection and MD5 are supported.
func digestAuthorization(creds *Credentials, ch DigestChallenge, method, uri, cnonce string) string {
	qop := ""
	if ch.Qop != "" {
		for _, q := range strings.Split(ch.Qop, ",") {
			if strings.TrimSpace(q) == "auth" {
				qop = "auth"
				break
			}
		}
	}
	const nc = "00000001"

	ha1 := md5Hex(creds.Username + ":" + ch.Realm + ":" + creds.Password)
	ha2 := md5Hex(method + ":" + uri)
	var response string
	if qop != "" {
		response = md5Hex(strings.Join([]string{ha1, ch.Nonce, nc, cnonce, qop, ha2}, ":"))
	} else {
		response = md5Hex(ha1 + ":" + ch.Nonce + ":" + ha2)
	}

	parts := []string{
		fmt.Sprintf(`username="%s"`, creds.Username),
		fmt.Sprintf(`realm="%s"`, ch.Realm),
		fmt.Sprintf(`nonce="%s"`, ch.Nonce),
		fmt.Sprintf(`uri="%s"`, uri),
		fmt.Sprintf(`response="%s"`, response),
	}
	if ch.Algorithm != "" {
		parts = append(parts, "algorithm="+ch.Algorithm)
	}
	if qop != "" {
		parts = append(parts, "qop="+qop, "nc="+nc, fmt.Sprintf(`cnonce="%s"`, cnonce))
	}
	if ch.Opaque != "" {
		parts = append(parts, fmt.Sprintf(`opaque="%s"`, ch.Opaque))
	}
	return "Digest " + strings.Join(parts, ", ")
}

// newCnonce returns a random client nonce.
func newCnonce() (string, error) {
	b := make([]byte, 8)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
