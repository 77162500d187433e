package adapter

import (
	"bytes"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitwire/packages/header"
	"github.com/abdul-hamid-achik/hitwire/packages/wire"
)

// Transport options understood by the Library adapter.
const (
	TransportFollowLocation = "followlocation"
	TransportMaxRedirs      = "maxredirs"
	TransportTimeout        = "timeout"
	TransportEncoding       = "encoding"
	TransportPostFields     = "postfields"
	TransportInFile         = "infile"
	TransportInFileSize     = "infilesize"
	TransportProxy          = "proxy"
	TransportProxyPort      = "proxyport"
	TransportProxyUserPwd   = "proxyuserpwd"
	TransportSSLVerifyPeer  = "ssl_verifypeer"
)

const defaultMaxRedirs = 10

// ErrNoResponse is returned by Library.Read when no exchange has completed.
var ErrNoResponse = errors.New("no response available: write a request first")

// Library is an adapter backed by net/http. Write performs the whole exchange;
// Read returns the response re-serialized as HTTP/1.x with the body already
// de-chunked.
type Library struct {
	opts    Options
	client  *http.Client
	scheme  string
	host    string
	port    int
	timeout time.Duration
	raw     []byte
}

// NewLibrary returns a library adapter with an empty configuration.
func NewLibrary() *Library {
	return &Library{}
}

// SetOptions merges opts into the configuration. Proxy and TLS settings are
// moved into the transport option map under the library's own names.
func (l *Library) SetOptions(opts Options) error {
	l.opts = Merge(l.opts, translate(opts))
	return nil
}

func translate(o Options) Options {
	out := o
	if v, ok := o.Get(OptProxyHost); ok {
		out = out.WithTransport(TransportProxy, v)
	}
	if v, ok := o.Get(OptProxyPort); ok {
		out = out.WithTransport(TransportProxyPort, v)
	}
	if user, ok := o.String(OptProxyUser); ok {
		pass, _ := o.String(OptProxyPass)
		out = out.WithTransport(TransportProxyUserPwd, user+":"+pass)
	}
	if v, ok := o.Get(OptSSLVerifyPeer); ok {
		out = out.WithTransport(TransportSSLVerifyPeer, v)
	}
	return out.Without(OptProxyHost, OptProxyPort, OptProxyUser, OptProxyPass, OptSSLVerifyPeer)
}

// Options returns the current configuration.
func (l *Library) Options() Options {
	return l.opts
}

// SetNativeRedirects toggles redirect following inside net/http.
func (l *Library) SetNativeRedirects(enabled bool) {
	l.opts = l.opts.WithTransport(TransportFollowLocation, enabled)
}

// NativeRedirects reports whether net/http follows redirects itself.
func (l *Library) NativeRedirects() bool {
	v, _ := l.transportBool(TransportFollowLocation)
	return v
}

// Connect prepares an http.Client for host:port. No connection is opened
// until Write.
func (l *Library) Connect(host string, port int, secure bool, timeout time.Duration) error {
	l.timeout = timeout
	if l.timeout <= 0 {
		if n, ok := l.transportInt(TransportTimeout); ok && n > 0 {
			l.timeout = time.Duration(n) * time.Second
		} else {
			l.timeout = timeoutFor(0, l.opts)
		}
	}

	proxy, err := l.proxyURL()
	if err != nil {
		return &TransportError{Op: "proxy", Err: err}
	}
	verify := true
	if v, ok := l.transportBool(TransportSSLVerifyPeer); ok {
		verify = v
	}
	_, decode := l.opts.TransportValue(TransportEncoding)

	tr := &http.Transport{
		DialContext:         (&net.Dialer{Timeout: l.timeout}).DialContext,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: !verify}, //nolint:gosec // controlled by sslverifypeer
		TLSHandshakeTimeout: l.timeout,
		DisableKeepAlives:   true,
		DisableCompression:  !decode,
	}
	if proxy != nil {
		tr.Proxy = http.ProxyURL(proxy)
	}

	l.client = &http.Client{
		Transport:     tr,
		Timeout:       l.timeout,
		CheckRedirect: l.checkRedirect,
	}
	l.scheme = "http"
	if secure {
		l.scheme = "https"
	}
	l.host = host
	l.port = port
	l.raw = nil
	return nil
}

func (l *Library) proxyURL() (*url.URL, error) {
	host, ok := l.transportString(TransportProxy)
	if !ok || host == "" {
		return nil, nil
	}
	raw := host
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy %q: %w", host, err)
	}
	if port, ok := l.transportInt(TransportProxyPort); ok && port > 0 && u.Port() == "" {
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(port))
	}
	if userpwd, ok := l.transportString(TransportProxyUserPwd); ok && userpwd != "" {
		user, pass, _ := strings.Cut(userpwd, ":")
		u.User = url.UserPassword(user, pass)
	}
	return u, nil
}

func (l *Library) checkRedirect(req *http.Request, via []*http.Request) error {
	if !l.NativeRedirects() {
		return http.ErrUseLastResponse
	}
	limit := defaultMaxRedirs
	if n, ok := l.transportInt(TransportMaxRedirs); ok {
		limit = n
	} else if n, ok := l.opts.Int(OptMaxRedirects); ok {
		limit = n
	}
	if len(via) > limit {
		return fmt.Errorf("stopped after %d redirects", limit)
	}
	return nil
}

// Write performs the exchange and buffers the serialized response for Read.
// The version argument is ignored; net/http speaks HTTP/1.1.
func (l *Library) Write(method string, target *url.URL, version string, headers *header.Headers, body []byte) error {
	if l.client == nil {
		return &NotConnectedError{Op: "write"}
	}
	l.raw = nil

	u := *target
	u.Fragment = ""
	u.User = nil
	if u.Host == "" {
		u.Scheme = l.scheme
		u.Host = net.JoinHostPort(l.host, strconv.Itoa(l.port))
	}

	rd, length := l.requestBody(body)
	req, err := http.NewRequest(method, u.String(), rd)
	if err != nil {
		return fmt.Errorf("%w: %v", wire.ErrMalformed, err)
	}
	req.ContentLength = length

	_, decode := l.opts.TransportValue(TransportEncoding)
	for _, f := range headers.Fields() {
		switch {
		case f.Is("Host"):
			req.Host = f.Value()
		case f.Is("Content-Length"), f.Is("Connection"), f.Is("Transfer-Encoding"):
		case decode && f.Is("Accept-Encoding"):
		default:
			// Direct assignment keeps the caller's spelling of the name.
			req.Header[f.Name()] = append(req.Header[f.Name()], f.Value())
		}
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return l.exchangeError(err, 0)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return l.exchangeError(err, int64(len(payload)))
	}
	l.raw = serialize(resp, method, payload)
	return nil
}

func (l *Library) requestBody(body []byte) (io.Reader, int64) {
	if len(body) > 0 {
		return bytes.NewReader(body), int64(len(body))
	}
	if v, ok := l.opts.TransportValue(TransportPostFields); ok {
		b := []byte(toString(v))
		return bytes.NewReader(b), int64(len(b))
	}
	if v, ok := l.opts.TransportValue(TransportInFile); ok {
		if r, ok := v.(io.Reader); ok {
			size := int64(-1)
			if n, ok := l.transportInt(TransportInFileSize); ok {
				size = int64(n)
			}
			return r, size
		}
	}
	return nil, 0
}

func (l *Library) exchangeError(err error, received int64) error {
	op := "read"
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		op = "connect"
	}
	return classify(op, net.JoinHostPort(l.host, strconv.Itoa(l.port)), l.timeout, received, err)
}

// serialize renders resp as raw HTTP/1.x bytes. Transfer-Encoding is always
// dropped since the body is already de-chunked, and Content-Encoding is
// dropped when net/http decompressed the body.
func serialize(resp *http.Response, method string, body []byte) []byte {
	var b bytes.Buffer
	major, minor := resp.ProtoMajor, resp.ProtoMinor
	if major != 1 {
		major, minor = 1, 1
	}
	status := resp.Status
	if status == "" {
		status = strconv.Itoa(resp.StatusCode)
	}
	fmt.Fprintf(&b, "HTTP/%d.%d %s\r\n", major, minor, status)

	hasBody := wire.HasBody(method, resp.StatusCode)
	keys := make([]string, 0, len(resp.Header))
	for k := range resp.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch {
		case strings.EqualFold(k, "Transfer-Encoding"):
			continue
		case hasBody && strings.EqualFold(k, "Content-Length"):
			continue
		case resp.Uncompressed && strings.EqualFold(k, "Content-Encoding"):
			continue
		}
		for _, v := range resp.Header[k] {
			fmt.Fprintf(&b, "%s: %s\r\n", k, v)
		}
	}
	if hasBody {
		fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	}
	b.WriteString("\r\n")
	if hasBody {
		b.Write(body)
	}
	return b.Bytes()
}

// Read returns the response buffered by the last Write.
func (l *Library) Read() ([]byte, error) {
	if l.client == nil {
		return nil, &NotConnectedError{Op: "read"}
	}
	if l.raw == nil {
		return nil, ErrNoResponse
	}
	raw := l.raw
	l.raw = nil
	return raw, nil
}

// Close drops the prepared client.
func (l *Library) Close() error {
	if l.client != nil {
		l.client.CloseIdleConnections()
	}
	l.client = nil
	l.raw = nil
	return nil
}

// Handle returns the prepared *http.Client, or nil when not connected.
func (l *Library) Handle() any {
	if l.client == nil {
		return nil
	}
	return l.client
}

func (l *Library) transportInt(key string) (int, bool) {
	v, ok := l.opts.TransportValue(key)
	if !ok {
		return 0, false
	}
	return toInt(v)
}

func (l *Library) transportBool(key string) (bool, bool) {
	v, ok := l.opts.TransportValue(key)
	if !ok {
		return false, false
	}
	return toBool(v)
}

func (l *Library) transportString(key string) (string, bool) {
	v, ok := l.opts.TransportValue(key)
	if !ok || v == nil {
		return "", false
	}
	return toString(v), true
}
