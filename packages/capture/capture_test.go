package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hitwire/packages/header"
	"github.com/abdul-hamid-achik/hitwire/packages/http"
)

func jsonResponse(t *testing.T, body string) *http.Response {
	t.Helper()
	h := header.NewHeaders()
	require.NoError(t, h.Set("Content-Type", "application/json"))
	require.NoError(t, h.Add("Set-Cookie", "a=1"))
	require.NoError(t, h.Add("Set-Cookie", "b=2"))
	require.NoError(t, h.Set("ETag", `"v1"`))
	return &http.Response{StatusCode: 201, Headers: h, Body: []byte(body), Duration: 42 * time.Millisecond}
}

func TestParse(t *testing.T) {
	tests := []struct {
		expr string
		want Capture
	}{
		{"id=body.data.id", Capture{Name: "id", Source: SourceBody, Path: "data.id"}},
		{"all=body", Capture{Name: "all", Source: SourceBody}},
		{"etag = header.ETag", Capture{Name: "etag", Source: SourceHeader, Path: "ETag"}},
		{"code=status", Capture{Name: "code", Source: SourceStatus}},
		{"took=duration", Capture{Name: "took", Source: SourceDuration}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Parse(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	for _, expr := range []string{"x=cookie.a", "x=header", "=status", "status"} {
		_, err := Parse(expr)
		assert.Error(t, err, expr)
	}
}

func TestExtractor(t *testing.T) {
	resp := jsonResponse(t, `{"data": {"id": 7, "tags": ["a", "b"]}, "ok": true}`)
	e := NewExtractor(resp)

	v, ok := e.Extract(&Capture{Source: SourceBody, Path: "data.id"})
	assert.True(t, ok)
	assert.Equal(t, float64(7), v)

	v, ok = e.Extract(&Capture{Source: SourceBody, Path: "data.tags.#"})
	assert.True(t, ok)
	assert.Equal(t, float64(2), v)

	_, ok = e.Extract(&Capture{Source: SourceBody, Path: "missing"})
	assert.False(t, ok)

	v, ok = e.Extract(&Capture{Source: SourceHeader, Path: "etag"})
	assert.True(t, ok)
	assert.Equal(t, `"v1"`, v)

	v, ok = e.Extract(&Capture{Source: SourceHeader, Path: "set-cookie"})
	assert.True(t, ok)
	assert.Equal(t, []string{"a=1", "b=2"}, v)

	v, ok = e.Extract(&Capture{Source: SourceStatus})
	assert.True(t, ok)
	assert.Equal(t, 201, v)

	v, ok = e.Extract(&Capture{Source: SourceDuration})
	assert.True(t, ok)
	assert.Equal(t, int64(42), v)
}

func TestExtractor_UntypedJSONBody(t *testing.T) {
	resp := &http.Response{Headers: header.NewHeaders(), Body: []byte(` [{"n": 1}] `)}

	v, ok := NewExtractor(resp).Query("0.n")
	assert.True(t, ok)
	assert.Equal(t, float64(1), v)
}

func TestExtractor_PlainBody(t *testing.T) {
	resp := &http.Response{Headers: header.NewHeaders(), Body: []byte("plain text")}
	e := NewExtractor(resp)

	v, ok := e.Query("")
	assert.True(t, ok)
	assert.Equal(t, "plain text", v)

	_, ok = e.Query("field")
	assert.False(t, ok)
}

func TestExtractAll(t *testing.T) {
	resp := jsonResponse(t, `{"token": "abc"}`)
	id, err := Parse("token=body.token")
	require.NoError(t, err)
	code, err := Parse("code=status")
	require.NoError(t, err)
	missing, err := Parse("nope=body.absent")
	require.NoError(t, err)

	got := ExtractAll(resp, []*Capture{id, code, missing})
	assert.Equal(t, map[string]any{"token": "abc", "code": 201}, got)
}
