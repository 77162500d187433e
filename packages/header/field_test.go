package header

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ValidFieldNameChars(t *testing.T) {
	chars := []string{
		"!", "#", "$", "%", "&", "'", "*", "+", "-", ".",
		"0", "9", "A", "Z", "^", "_", "`", "a", "z", "|", "~",
	}

	for _, name := range chars {
		t.Run(name, func(t *testing.T) {
			f, err := New(name, "value")
			require.NoError(t, err, "allowed char rejected: %d", name[0])
			assert.Equal(t, name, f.Name())
		})
	}
}

func TestNew_InvalidFieldNameChars(t *testing.T) {
	chars := []string{
		"\x00", "\x1F", "(", ")", "<", ">", "@", ",", ";", ":",
		"\\", "\"", "/", "[", "]", "?", "=", "{", "}", " ", "\t", "\x7F",
	}

	for _, name := range chars {
		t.Run(quoteForError(name), func(t *testing.T) {
			_, err := New(name, "value")
			require.Error(t, err, "invalid char allowed: %d", name[0])

			var invalid *InvalidHeaderError
			require.True(t, errors.As(err, &invalid))
			assert.Contains(t, err.Error(), "header name must be a valid RFC 7230 (section 3.2) field-name")
		})
	}
}

func TestNew_EmptyName(t *testing.T) {
	_, err := New("", "value")
	assert.Error(t, err)
}

func TestNew_DoesNotReplaceUnderscoresWithDashes(t *testing.T) {
	f, err := New("X_Foo_Bar", "baz")
	require.NoError(t, err)
	assert.Equal(t, "X_Foo_Bar", f.Name())
	assert.Equal(t, "X_Foo_Bar: baz", f.String())
}

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantName  string
		wantValue string
	}{
		{"simple", "Content-Type: text/plain", "Content-Type", "text/plain"},
		{"no space", "X-Foo:bar", "X-Foo", "bar"},
		{"only one leading space trimmed", "X-Foo:  bar", "X-Foo", " bar"},
		{"trailing whitespace", "X-Foo: bar \t", "X-Foo", "bar"},
		{"colon in value", "Location: http://example.com:8080/", "Location", "http://example.com:8080/"},
		{"empty value", "X-Empty:", "X-Empty", ""},
		{"underscore", "X_Foo_Bar: Bar", "X_Foo_Bar", "Bar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, f.Name())
			assert.Equal(t, tt.wantValue, f.Value())
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		errMsg string
	}{
		{"missing colon", "NoColonHere", "must contain a colon"},
		{"space before colon", "X-Foo : bar", "field-name"},
		{"empty name", ": bar", "field-name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.line)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestPreventsCRLFAttackViaParse(t *testing.T) {
	_, err := Parse("X_Foo_Bar: Bar\r\n\r\nevilContent")
	require.Error(t, err)

	var invalid *InvalidHeaderError
	assert.True(t, errors.As(err, &invalid))
	assert.Contains(t, err.Error(), "invalid header value")
}

func TestPreventsCRLFAttackViaNew(t *testing.T) {
	_, err := New("X_Foo_Bar", "Bar\r\n\r\nevilContent")
	require.Error(t, err)

	var invalid *InvalidHeaderError
	assert.True(t, errors.As(err, &invalid))
}

func TestProtectsFromCRLFAttackViaSetName(t *testing.T) {
	var f Field
	err := f.SetName("\rX-\r\nFoo-\nBar")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valid")
	assert.Equal(t, "", f.Name())
}

func TestProtectsFromCRLFAttackViaSetValue(t *testing.T) {
	f, err := New("X-Foo", "safe")
	require.NoError(t, err)

	err = f.SetValue("\rSome\r\nCLRF\nAttack")
	require.Error(t, err)
	assert.Equal(t, "safe", f.Value())
}

func TestValidValue(t *testing.T) {
	assert.True(t, ValidValue("plain value"))
	assert.True(t, ValidValue("tab\tseparated"))
	assert.True(t, ValidValue("caf\xc3\xa9"))
	assert.True(t, ValidValue(""))
	assert.False(t, ValidValue("bare\rcr"))
	assert.False(t, ValidValue("bare\nlf"))
	assert.False(t, ValidValue("nul\x00byte"))
	assert.False(t, ValidValue("del\x7f"))
}

func TestField_Is(t *testing.T) {
	f, err := New("transfer-encoding", "chunked")
	require.NoError(t, err)
	assert.True(t, f.Is("Transfer-Encoding"))
	assert.True(t, f.Is("TRANSFER-ENCODING"))
	assert.False(t, f.Is("Content-Encoding"))
}
