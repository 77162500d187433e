package adapter

import (
	"bufio"
	"bytes"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/abdul-hamid-achik/hitwire/packages/header"
	"github.com/abdul-hamid-achik/hitwire/packages/wire"
)

const (
	defaultProxyPort  = 8080
	defaultReadBuffer = 4096
)

// meter counts bytes read from the connection so timeouts can report how
// much of the response had arrived.
type meter struct {
	r io.Reader
	n int64
}

func (m *meter) Read(p []byte) (int, error) {
	n, err := m.r.Read(p)
	m.n += int64(n)
	return n, err
}

// Socket is an adapter that writes requests directly to a TCP (or TLS)
// connection and frames responses itself.
type Socket struct {
	opts     Options
	conn     net.Conn
	br       *bufio.Reader
	in       *meter
	addr     string
	viaProxy bool
	timeout  time.Duration
	method   string
}

// NewSocket returns a socket adapter with an empty configuration.
func NewSocket() *Socket {
	return &Socket{}
}

// SetOptions merges opts into the adapter configuration.
func (s *Socket) SetOptions(opts Options) error {
	s.opts = Merge(s.opts, opts)
	return nil
}

// Options returns the current configuration.
func (s *Socket) Options() Options {
	return s.opts
}

// Connect dials host:port, directly or through the configured proxy. For
// secure connections through a proxy a CONNECT tunnel is opened first.
func (s *Socket) Connect(host string, port int, secure bool, timeout time.Duration) error {
	if s.conn != nil {
		_ = s.Close()
	}
	s.timeout = timeoutFor(timeout, s.opts)
	s.addr = net.JoinHostPort(host, strconv.Itoa(port))

	dialAddr := s.addr
	proxyHost, _ := s.opts.String(OptProxyHost)
	proxied := proxyHost != ""
	if proxied {
		proxyPort, ok := s.opts.Int(OptProxyPort)
		if !ok || proxyPort <= 0 {
			proxyPort = defaultProxyPort
		}
		dialAddr = net.JoinHostPort(proxyHost, strconv.Itoa(proxyPort))
	}

	d := net.Dialer{Timeout: s.timeout}
	if ka, ok := s.transportInt("keepalive"); ok {
		d.KeepAlive = time.Duration(ka) * time.Second
	}
	conn, err := d.Dial("tcp", dialAddr)
	if err != nil {
		return classify("connect", dialAddr, s.timeout, 0, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		nodelay := true
		if v, ok := s.transportBool("nodelay"); ok {
			nodelay = v
		}
		_ = tc.SetNoDelay(nodelay)
	}

	size := defaultReadBuffer
	if n, ok := s.transportInt("readbuffer"); ok && n > 0 {
		size = n
	}
	in := &meter{r: conn}
	br := bufio.NewReaderSize(in, size)

	if secure {
		if proxied {
			if err := s.tunnel(conn, br); err != nil {
				_ = conn.Close()
				return err
			}
		}
		tlsConn, err := s.handshake(conn, host)
		if err != nil {
			_ = conn.Close()
			return err
		}
		conn = tlsConn
		in = &meter{r: conn}
		br = bufio.NewReaderSize(in, size)
	}

	s.conn = conn
	s.in = in
	s.br = br
	s.viaProxy = proxied && !secure
	return nil
}

func (s *Socket) tunnel(conn net.Conn, br *bufio.Reader) error {
	h := header.NewHeaders()
	if err := h.Set("Host", s.addr); err != nil {
		return &TransportError{Op: "proxy", Addr: s.addr, Err: err}
	}
	if auth := s.proxyAuth(); auth != "" {
		_ = h.Set("Proxy-Authorization", auth)
	}

	_ = conn.SetDeadline(time.Now().Add(s.timeout))
	defer func() { _ = conn.SetDeadline(time.Time{}) }()

	if err := wire.WriteRequest(conn, "CONNECT", s.addr, "", h, nil); err != nil {
		return classify("proxy", s.addr, s.timeout, 0, err)
	}
	raw, err := wire.ReadResponse(br, "CONNECT")
	if err != nil {
		return classify("proxy", s.addr, s.timeout, 0, err)
	}
	line, _, _ := bytes.Cut(raw, []byte("\n"))
	_, code, reason, err := wire.ParseStatusLine(string(bytes.TrimRight(line, "\r")))
	if err != nil {
		return &TransportError{Op: "proxy", Addr: s.addr, Err: err}
	}
	if code < 200 || code > 299 {
		return &TransportError{Op: "proxy", Addr: s.addr, Err: fmt.Errorf("CONNECT failed: %d %s", code, reason)}
	}
	return nil
}

func (s *Socket) handshake(conn net.Conn, host string) (*tls.Conn, error) {
	verify := true
	if v, ok := s.opts.Bool(OptSSLVerifyPeer); ok {
		verify = v
	}
	cfg := &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: !verify, //nolint:gosec // controlled by sslverifypeer
		NextProtos:         []string{"http/1.1"},
	}
	tc := tls.Client(conn, cfg)
	_ = tc.SetDeadline(time.Now().Add(s.timeout))
	if err := tc.Handshake(); err != nil {
		return nil, classify("tls", s.addr, s.timeout, 0, err)
	}
	_ = tc.SetDeadline(time.Time{})
	return tc, nil
}

// Write serializes and sends one request. Requests through a plain HTTP proxy
// use the absolute-form target and carry Proxy-Authorization when proxy
// credentials are configured.
func (s *Socket) Write(method string, target *url.URL, version string, headers *header.Headers, body []byte) error {
	if s.conn == nil {
		return &NotConnectedError{Op: "write"}
	}
	if headers == nil {
		headers = header.NewHeaders()
	}
	h := headers
	if s.viaProxy && !headers.Has("Proxy-Authorization") {
		if auth := s.proxyAuth(); auth != "" {
			h = headers.Clone()
			_ = h.Set("Proxy-Authorization", auth)
		}
	}

	var buf bytes.Buffer
	if err := wire.WriteRequest(&buf, method, wire.RequestTarget(target, s.viaProxy), version, h, body); err != nil {
		return err
	}

	s.method = method
	s.in.n = 0
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.timeout))
	if _, err := s.conn.Write(buf.Bytes()); err != nil {
		return classify("write", s.addr, s.timeout, 0, err)
	}
	return nil
}

// Read returns exactly one framed response.
func (s *Socket) Read() ([]byte, error) {
	if s.conn == nil {
		return nil, &NotConnectedError{Op: "read"}
	}
	_ = s.conn.SetReadDeadline(time.Now().Add(s.timeout))
	raw, err := wire.ReadResponse(s.br, s.method)
	if err != nil {
		if errors.Is(err, wire.ErrMalformed) {
			return nil, err
		}
		return nil, classify("read", s.addr, s.timeout, s.in.n, err)
	}
	return raw, nil
}

// Close closes the connection.
func (s *Socket) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.br = nil
	s.in = nil
	return err
}

// Handle returns the live net.Conn, or nil when not connected.
func (s *Socket) Handle() any {
	if s.conn == nil {
		return nil
	}
	return s.conn
}

func (s *Socket) proxyAuth() string {
	user, _ := s.opts.String(OptProxyUser)
	if user == "" {
		return ""
	}
	pass, _ := s.opts.String(OptProxyPass)
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func (s *Socket) transportInt(key string) (int, bool) {
	v, ok := s.opts.TransportValue(key)
	if !ok {
		return 0, false
	}
	return toInt(v)
}

func (s *Socket) transportBool(key string) (bool, bool) {
	v, ok := s.opts.TransportValue(key)
	if !ok {
		return false, false
	}
	return toBool(v)
}
