package header

import (
	"strings"
)

const (
	msgInvalidName  = "header name must be a valid RFC 7230 (section 3.2) field-name"
	msgInvalidValue = "invalid header value detected"
	msgMissingColon = "header line must contain a colon"
)

// InvalidHeaderError is returned whenever a header name or value fails validation.
type InvalidHeaderError struct {
	Name   string
	Reason string
}

func (e *InvalidHeaderError) Error() string {
	if e.Name == "" {
		return e.Reason
	}
	return e.Reason + ": " + quoteForError(e.Name)
}

// tchar = "!" / "#" / "$" / "%" / "&" / "'" / "*" / "+" / "-" / "." / "^" / "_" / "`" / "|" / "~" / DIGIT / ALPHA
var tokenTable = [256]int8{
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 1, 0, 1, 1, 1, 1, 1, 0, 0, 1, 1, 0, 1, 1, 0, //   !   # $ % & '     * +   - .
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 0, 0, // 0 1 2 3 4 5 6 7 8 9
	0, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, //   A B C D E F G H I J K L M N O
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 0, 0, 1, 1, // P Q R S T U V W X Y Z       ^ _
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, // ` a b c d e f g h i j k l m n o
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 1, 0, 1, 0, // p q r s t u v w x y z   |   ~
}

// ValidName reports whether name is a non-empty RFC 7230 token.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if tokenTable[name[i]] == 0 {
			return false
		}
	}
	return true
}

// ValidValue reports whether value is a legal field-value: visible characters,
// SP, HTAB and obs-text. CR, LF, NUL and DEL are rejected.
func ValidValue(value string) bool {
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c == '\t' {
			continue
		}
		if c < 0x20 || c == 0x7f {
			return false
		}
	}
	return true
}

// Field is a single header field. The zero value is an empty, unnamed field
// that can be filled through SetName and SetValue.
type Field struct {
	name  string
	value string
}

// New builds a validated field.
func New(name, value string) (Field, error) {
	var f Field
	if err := f.SetName(name); err != nil {
		return Field{}, err
	}
	if err := f.SetValue(value); err != nil {
		return Field{}, err
	}
	return f, nil
}

// Parse builds a field from a raw "Name: Value" line. The line must not carry
// its CRLF terminator.
func Parse(line string) (Field, error) {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return Field{}, &InvalidHeaderError{Name: line, Reason: msgMissingColon}
	}
	value := line[i+1:]
	if value != "" && (value[0] == ' ' || value[0] == '\t') {
		value = value[1:]
	}
	return New(line[:i], strings.TrimRight(value, " \t"))
}

// Name returns the field name exactly as given.
func (f Field) Name() string { return f.name }

// Value returns the field value.
func (f Field) Value() string { return f.value }

// SetName replaces the field name after validating it.
func (f *Field) SetName(name string) error {
	if !ValidName(name) {
		return &InvalidHeaderError{Name: name, Reason: msgInvalidName}
	}
	f.name = name
	return nil
}

// SetValue replaces the field value after validating it.
func (f *Field) SetValue(value string) error {
	if !ValidValue(value) {
		return &InvalidHeaderError{Name: f.name, Reason: msgInvalidValue}
	}
	f.value = value
	return nil
}

// Is reports whether the field name matches name, ignoring case.
func (f Field) Is(name string) bool {
	return strings.EqualFold(f.name, name)
}

// String renders the field as it appears on the wire, without CRLF.
func (f Field) String() string {
	return f.name + ": " + f.value
}

func quoteForError(s string) string {
	if len(s) > 64 {
		s = s[:64] + "..."
	}
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\n':
			b.WriteString(`\n`)
		case c < 0x20 || c == 0x7f:
			b.WriteString(`\x`)
			b.WriteByte("0123456789abcdef"[c>>4])
			b.WriteByte("0123456789abcdef"[c&0xf])
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}
