package http

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hitwire/packages/adapter"
)

func TestIsDigestChallenge(t *testing.T) {
	assert.True(t, IsDigestChallenge(`Digest realm="x"`))
	assert.True(t, IsDigestChallenge(`  digest realm="x"`))
	assert.False(t, IsDigestChallenge(`Basic realm="x"`))
	assert.False(t, IsDigestChallenge(""))
}

func TestParseDigestChallenge(t *testing.T) {
	ch := ParseDigestChallenge(`Digest realm="api, v2", nonce="abc123", qop="auth,auth-int", opaque="xyz", algorithm=MD5`)

	assert.Equal(t, DigestChallenge{
		Realm:     "api, v2",
		Nonce:     "abc123",
		Opaque:    "xyz",
		Qop:       "auth,auth-int",
		Algorithm: "MD5",
	}, ch)
}

func TestParseDigestChallenge_Unquoted(t *testing.T) {
	ch := ParseDigestChallenge(`Digest realm=simple,nonce=n1 , stale=false`)
	assert.Equal(t, "simple", ch.Realm)
	assert.Equal(t, "n1", ch.Nonce)
	assert.Empty(t, ch.Qop)
}

func TestDigestAuthorization_KnownVector(t *testing.T) {
	creds := &Credentials{Username: "Mufasa", Password: "Circle Of Life", Scheme: AuthDigest}
	ch := DigestChallenge{
		Realm:  "testrealm@host.com",
		Nonce:  "dcd98b7102dd2f0e8b11d0f600bfb0c093",
		Opaque: "5ccc069c403ebaf9f0171e9517f40e41",
		Qop:    "auth,auth-int",
	}

	got := digestAuthorization(creds, ch, "GET", "/dir/index.html", "0a4f113b")

	assert.True(t, strings.HasPrefix(got, "Digest "))
	assert.Contains(t, got, `response="6629fae49393a05397450978507c4ef1"`)
	assert.Contains(t, got, `username="Mufasa"`)
	assert.Contains(t, got, "qop=auth, nc=00000001, ")
	assert.Contains(t, got, `cnonce="0a4f113b"`)
	assert.Contains(t, got, `opaque="5ccc069c403ebaf9f0171e9517f40e41"`)
}

func TestDigestAuthorization_WithoutQop(t *testing.T) {
	creds := &Credentials{Username: "u", Password: "p", Scheme: AuthDigest}
	ch := DigestChallenge{Realm: "r", Nonce: "n"}

	got := digestAuthorization(creds, ch, "POST", "/x", "ignored")

	want := md5Hex(md5Hex("u:r:p") + ":n:" + md5Hex("POST:/x"))
	assert.Contains(t, got, `response="`+want+`"`)
	assert.NotContains(t, got, "qop=")
	assert.NotContains(t, got, "cnonce")
}

var digestParam = regexp.MustCompile(`(\w+)=(?:"([^"]*)"|([^,\s]*))`)

func digestParams(value string) map[string]string {
	out := make(map[string]string)
	for _, m := range digestParam.FindAllStringSubmatch(value, -1) {
		out[m[1]] = m[2] + m[3]
	}
	return out
}

// digestServer accepts user/password on /secret and counts every request.
func digestServer(t *testing.T, user, password string, hits *int32) *httptest.Server {
	t.Helper()
	const realm, nonce = "hitwire", "f00d"
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		auth := r.Header.Get("Authorization")
		if strings.HasPrefix(auth, "Digest ") {
			p := digestParams(auth)
			ha1 := md5Hex(user + ":" + realm + ":" + password)
			ha2 := md5Hex(r.Method + ":" + p["uri"])
			want := md5Hex(strings.Join([]string{ha1, nonce, p["nc"], p["cnonce"], p["qop"], ha2}, ":"))
			if p["username"] == user && p["uri"] == r.URL.RequestURI() && p["response"] == want {
				_, _ = w.Write([]byte("welcome"))
				return
			}
		}
		w.Header().Set("WWW-Authenticate", `Digest realm="`+realm+`", nonce="`+nonce+`", qop="auth", opaque="o1"`)
		w.WriteHeader(http.StatusUnauthorized)
	}))
}

func TestClient_DigestAuth(t *testing.T) {
	for name, newAdapter := range map[string]func() adapter.Adapter{
		"socket":  func() adapter.Adapter { return adapter.NewSocket() },
		"library": func() adapter.Adapter { return adapter.NewLibrary() },
	} {
		t.Run(name, func(t *testing.T) {
			var hits int32
			server := digestServer(t, "alice", "secret", &hits)
			defer server.Close()

			client := newTestClient(t, WithAdapter(newAdapter()), WithDigestAuth("alice", "secret"))
			resp, err := client.Get(server.URL+"/secret?v=1", nil)

			require.NoError(t, err)
			assert.Equal(t, 200, resp.StatusCode)
			assert.Equal(t, "welcome", resp.BodyString())
			assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
			assert.Contains(t, string(client.LastRawRequest()), `uri="/secret?v=1"`)
		})
	}
}

func TestClient_DigestAuthAnsweredOnce(t *testing.T) {
	var hits int32
	server := digestServer(t, "alice", "secret", &hits)
	defer server.Close()

	client := newTestClient(t, WithDigestAuth("alice", "wrong"))
	resp, err := client.Get(server.URL+"/secret", nil)

	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestClient_DigestAuthIgnoresBasicChallenge(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("WWW-Authenticate", `Basic realm="x"`)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, WithDigestAuth("alice", "secret"))
	resp, err := client.Get(server.URL, nil)

	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.NotContains(t, string(client.LastRawRequest()), "Authorization")
}
