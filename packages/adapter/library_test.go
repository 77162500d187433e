package adapter

import (
	"bufio"
	"compress/gzip"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitwire/packages/header"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serverAddr(t *testing.T, server *httptest.Server) (string, int, *url.URL) {
	t.Helper()
	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return u.Hostname(), port, u
}

func exchange(t *testing.T, l *Library, server *httptest.Server, method, path string, h *header.Headers, body []byte) string {
	t.Helper()
	host, port, base := serverAddr(t, server)
	require.NoError(t, l.Connect(host, port, false, 2*time.Second))
	defer l.Close()

	target := base.ResolveReference(&url.URL{Path: path})
	require.NoError(t, l.Write(method, target, "", h, body))
	raw, err := l.Read()
	require.NoError(t, err)
	return string(raw)
}

func TestLibrary_ProxyOptionsTranslated(t *testing.T) {
	l := NewLibrary()
	require.NoError(t, l.SetOptions(MustOptions(map[string]any{
		OptProxyHost: "localhost",
		OptProxyPort: 80,
		OptProxyUser: "foo",
		OptProxyPass: "baz",
	})))

	assert.Equal(t, map[string]any{
		OptTransport: map[string]any{
			TransportProxyUserPwd: "foo:baz",
			TransportProxy:        "localhost",
			TransportProxyPort:    80,
		},
	}, l.Options().Map())
}

func TestLibrary_SSLVerifyPeerTranslated(t *testing.T) {
	l := NewLibrary()
	require.NoError(t, l.SetOptions(MustOptions(map[string]any{OptSSLVerifyPeer: false})))

	assert.False(t, l.Options().Has(OptSSLVerifyPeer))
	v, ok := l.Options().TransportValue(TransportSSLVerifyPeer)
	assert.True(t, ok)
	assert.Equal(t, false, v)
}

func TestLibrary_TransportOptionsAccumulate(t *testing.T) {
	l := NewLibrary()
	require.NoError(t, l.SetOptions(MustOptions(map[string]any{OptTimeout: 1, OptTransport: map[string]any{TransportFollowLocation: true}})))
	require.NoError(t, l.SetOptions(MustOptions(map[string]any{OptTimeout: 2, OptTransport: map[string]any{TransportMaxRedirs: 5}})))

	assert.Equal(t, map[string]any{
		OptTimeout: 2,
		OptTransport: map[string]any{
			TransportFollowLocation: true,
			TransportMaxRedirs:      5,
		},
	}, l.Options().Map())
}

func TestLibrary_WriteBeforeConnect(t *testing.T) {
	l := NewLibrary()
	err := l.Write("GET", mustURL(t, "http://example.com/"), "", header.NewHeaders(), nil)

	var nc *NotConnectedError
	require.True(t, errors.As(err, &nc))
	assert.Equal(t, "trying to write but we are not connected", err.Error())
}

func TestLibrary_HandleIsHTTPClient(t *testing.T) {
	l := NewLibrary()
	assert.Nil(t, l.Handle())

	require.NoError(t, l.Connect("example.com", 80, false, time.Second))
	_, ok := l.Handle().(*http.Client)
	assert.True(t, ok)

	require.NoError(t, l.Close())
	assert.Nil(t, l.Handle())
}

func TestLibrary_ReadBeforeWrite(t *testing.T) {
	l := NewLibrary()
	require.NoError(t, l.Connect("example.com", 80, false, time.Second))
	defer l.Close()

	_, err := l.Read()
	assert.ErrorIs(t, err, ErrNoResponse)
}

func gzipHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Content-Type", "text/plain")
		gz := gzip.NewWriter(w)
		_, _ = gz.Write([]byte(body))
		_ = gz.Close()
	}
}

func TestLibrary_EncodingOptionDecodesOnce(t *testing.T) {
	server := httptest.NewServer(gzipHandler("decoded by the library"))
	defer server.Close()

	l := NewLibrary()
	require.NoError(t, l.SetOptions(MustOptions(map[string]any{OptTransport: map[string]any{TransportEncoding: ""}})))

	h := header.NewHeaders()
	require.NoError(t, h.Set("Accept-Encoding", "gzip, deflate"))
	raw := exchange(t, l, server, "GET", "/", h, nil)

	head, body, ok := strings.Cut(raw, "\r\n\r\n")
	require.True(t, ok)
	assert.Equal(t, "decoded by the library", body)
	assert.NotContains(t, strings.ToLower(head), "content-encoding")
	assert.NotContains(t, strings.ToLower(head), "transfer-encoding")
	assert.Contains(t, head, "Content-Length: 22")
}

func TestLibrary_WithoutEncodingOptionKeepsCompressedBody(t *testing.T) {
	server := httptest.NewServer(gzipHandler("still compressed"))
	defer server.Close()

	h := header.NewHeaders()
	require.NoError(t, h.Set("Accept-Encoding", "gzip"))
	raw := exchange(t, NewLibrary(), server, "GET", "/", h, nil)

	head, body, ok := strings.Cut(raw, "\r\n\r\n")
	require.True(t, ok)
	assert.Contains(t, head, "Content-Encoding: gzip")

	gz, err := gzip.NewReader(strings.NewReader(body))
	require.NoError(t, err)
	plain, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "still compressed", string(plain))
}

func TestLibrary_ChunkedBodyIsDechunked(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte("first "))
		flusher.Flush()
		_, _ = w.Write([]byte("second"))
	}))
	defer server.Close()

	raw := exchange(t, NewLibrary(), server, "GET", "/", header.NewHeaders(), nil)

	head, body, ok := strings.Cut(raw, "\r\n\r\n")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(head, "HTTP/1.1 200 OK"))
	assert.NotContains(t, strings.ToLower(head), "transfer-encoding")
	assert.Contains(t, head, "Content-Length: 12")
	assert.Equal(t, "first second", body)
}

func TestLibrary_HeadKeepsDeclaredLength(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
	}))
	defer server.Close()

	raw := exchange(t, NewLibrary(), server, "HEAD", "/", header.NewHeaders(), nil)

	head, body, ok := strings.Cut(raw, "\r\n\r\n")
	require.True(t, ok)
	assert.Contains(t, head, "Content-Length: 100")
	assert.Empty(t, body)
}

func TestLibrary_NativeRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/end", http.StatusFound)
			return
		}
		_, _ = w.Write([]byte("arrived"))
	}))
	defer server.Close()

	l := NewLibrary()
	assert.False(t, l.NativeRedirects())
	raw := exchange(t, l, server, "GET", "/start", header.NewHeaders(), nil)
	assert.True(t, strings.HasPrefix(raw, "HTTP/1.1 302 Found"), raw)

	l.SetNativeRedirects(true)
	assert.True(t, l.NativeRedirects())
	raw = exchange(t, l, server, "GET", "/start", header.NewHeaders(), nil)
	assert.True(t, strings.HasPrefix(raw, "HTTP/1.1 200 OK"), raw)
	assert.True(t, strings.HasSuffix(raw, "arrived"))
}

func TestLibrary_PostFieldsAndInFile(t *testing.T) {
	bodies := make(chan string, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies <- r.Method + " " + string(b)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	l := NewLibrary()
	require.NoError(t, l.SetOptions(MustOptions(map[string]any{OptTransport: map[string]any{TransportPostFields: "a=b"}})))
	exchange(t, l, server, "POST", "/", header.NewHeaders(), nil)
	assert.Equal(t, "POST a=b", <-bodies)

	l = NewLibrary()
	require.NoError(t, l.SetOptions(MustOptions(map[string]any{OptTransport: map[string]any{
		TransportInFile:     strings.NewReader("streamed"),
		TransportInFileSize: 8,
	}})))
	exchange(t, l, server, "PUT", "/", header.NewHeaders(), nil)
	assert.Equal(t, "PUT streamed", <-bodies)
}

func TestLibrary_ForwardsHeadersAndHost(t *testing.T) {
	seen := make(chan *http.Request, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r
	}))
	defer server.Close()

	h := header.NewHeaders()
	require.NoError(t, h.Set("Host", "virtual.test"))
	require.NoError(t, h.Set("X-Trace", "abc"))
	require.NoError(t, h.Set("Connection", "close"))
	exchange(t, NewLibrary(), server, "GET", "/", h, nil)

	r := <-seen
	assert.Equal(t, "virtual.test", r.Host)
	assert.Equal(t, "abc", r.Header.Get("X-Trace"))
}

func TestLibrary_Timeout(t *testing.T) {
	done := stall(t)
	port := serveOnce(t, func(c net.Conn, br *bufio.Reader) {
		readRequestHead(br)
		<-done
	})

	l := NewLibrary()
	require.NoError(t, l.Connect("127.0.0.1", port, false, 250*time.Millisecond))
	defer l.Close()

	err := l.Write("GET", mustURL(t, "http://127.0.0.1:"+strconv.Itoa(port)+"/"), "", header.NewHeaders(), nil)

	var te *TransportError
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.True(t, te.Timeout)
	assert.Contains(t, err.Error(), "operation timed out after 250 milliseconds with 0 bytes received")
}
