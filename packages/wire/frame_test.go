package wire

import (
	"bufio"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reader(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestReadResponse_Framing(t *testing.T) {
	tests := []struct {
		name   string
		method string
		input  string
		want   string
	}{
		{
			name:   "content length stops at body end",
			method: "GET",
			input:  "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhelloEXTRA",
			want:   "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello",
		},
		{
			name:   "chunked keeps framing",
			method: "GET",
			input:  "HTTP/1.1 200 OK\r\ntransfer-encoding: chunked\r\n\r\n5\r\nhello\r\n0\r\n\r\nNEXT",
			want:   "HTTP/1.1 200 OK\r\ntransfer-encoding: chunked\r\n\r\n5\r\nhello\r\n0\r\n\r\n",
		},
		{
			name:   "head ignores content length",
			method: "HEAD",
			input:  "HTTP/1.1 200 OK\r\nContent-Length: 100\r\n\r\n",
			want:   "HTTP/1.1 200 OK\r\nContent-Length: 100\r\n\r\n",
		},
		{
			name:   "no content",
			method: "GET",
			input:  "HTTP/1.1 204 No Content\r\nContent-Length: 3\r\n\r\n",
			want:   "HTTP/1.1 204 No Content\r\nContent-Length: 3\r\n\r\n",
		},
		{
			name:   "close delimited",
			method: "GET",
			input:  "HTTP/1.0 200 OK\r\n\r\nall of it",
			want:   "HTTP/1.0 200 OK\r\n\r\nall of it",
		},
		{
			name:   "interim response kept",
			method: "POST",
			input:  "HTTP/1.1 100 Continue\r\n\r\nHTTP/1.1 201 Created\r\nContent-Length: 2\r\n\r\nok",
			want:   "HTTP/1.1 100 Continue\r\n\r\nHTTP/1.1 201 Created\r\nContent-Length: 2\r\n\r\nok",
		},
		{
			name:   "bare LF line endings",
			method: "GET",
			input:  "HTTP/1.1 200 OK\nContent-Length: 2\n\nok",
			want:   "HTTP/1.1 200 OK\nContent-Length: 2\n\nok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := ReadResponse(reader(tt.input), tt.method)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(raw))
		})
	}
}

func TestReadResponse_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"garbage status", "NOT HTTP\r\n\r\n"},
		{"bad code", "HTTP/1.1 2x0 OK\r\n\r\n"},
		{"header without colon", "HTTP/1.1 200 OK\r\nBroken\r\n\r\n"},
		{"bad content length", "HTTP/1.1 200 OK\r\nContent-Length: -1\r\n\r\n"},
		{"short body", "HTTP/1.1 200 OK\r\nContent-Length: 10\r\n\r\nabc"},
		{"truncated headers", "HTTP/1.1 200 OK\r\nX-A: 1\r\n"},
		{"bad chunk size", "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\nzz\r\n"},
		{"missing chunk terminator", "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n3\r\nabcXX\r\n0\r\n\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadResponse(reader(tt.input), "GET")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
		})
	}
}

func TestParseStatusLine(t *testing.T) {
	version, code, reason, err := ParseStatusLine("HTTP/1.1 404 Not Found")
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1", version)
	assert.Equal(t, 404, code)
	assert.Equal(t, "Not Found", reason)

	_, code, reason, err = ParseStatusLine("HTTP/1.0 200")
	require.NoError(t, err)
	assert.Equal(t, 200, code)
	assert.Equal(t, "", reason)

	for _, bad := range []string{"", "HTTP/1.1", "HTTP/x.1 200 OK", "HTTP/1.1 20 OK", "HTTP/1.1 099 Low", "ICY 200 OK"} {
		_, _, _, err := ParseStatusLine(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseRequestLine(t *testing.T) {
	method, target, version, err := ParseRequestLine("POST /submit?a=1 HTTP/1.1")
	require.NoError(t, err)
	assert.Equal(t, "POST", method)
	assert.Equal(t, "/submit?a=1", target)
	assert.Equal(t, "HTTP/1.1", version)

	_, _, _, err = ParseRequestLine("GET /a b HTTP/1.1")
	assert.Error(t, err)
}

func TestIsChunked(t *testing.T) {
	assert.True(t, IsChunked("chunked"))
	assert.True(t, IsChunked("CHUNKED"))
	assert.True(t, IsChunked("gzip, chunked"))
	assert.False(t, IsChunked("chunked, gzip"))
	assert.False(t, IsChunked("identity"))
}

func TestHasBody(t *testing.T) {
	assert.False(t, HasBody("HEAD", 200))
	assert.False(t, HasBody("head", 200))
	assert.False(t, HasBody("GET", 204))
	assert.False(t, HasBody("GET", 304))
	assert.False(t, HasBody("GET", 100))
	assert.True(t, HasBody("GET", 200))
	assert.True(t, HasBody("POST", 302))
	assert.False(t, HasBody("CONNECT", 200))
	assert.True(t, HasBody("CONNECT", 407))
}
