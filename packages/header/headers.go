package header

import (
	"strings"
)

// Headers is an ordered collection of fields with case-insensitive lookup.
// Set keeps names unique; Add allows repeated names such as Set-Cookie.
type Headers struct {
	fields []Field
}

// NewHeaders returns an empty collection.
func NewHeaders() *Headers {
	return &Headers{}
}

// FromMap builds a collection from a plain map. Map iteration order is not
// stable, so callers that care about order should use Set directly.
func FromMap(m map[string]string) (*Headers, error) {
	h := NewHeaders()
	for k, v := range m {
		if err := h.Set(k, v); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Set validates and stores the field, replacing every existing field with the
// same name. The first replaced field keeps its position.
func (h *Headers) Set(name, value string) error {
	f, err := New(name, value)
	if err != nil {
		return err
	}
	h.SetField(f)
	return nil
}

// SetField stores an already validated field with Set semantics.
func (h *Headers) SetField(f Field) {
	idx := -1
	kept := h.fields[:0]
	for _, existing := range h.fields {
		if existing.Is(f.name) {
			if idx < 0 {
				idx = len(kept)
				kept = append(kept, f)
			}
			continue
		}
		kept = append(kept, existing)
	}
	h.fields = kept
	if idx < 0 {
		h.fields = append(h.fields, f)
	}
}

// Add validates and appends the field without touching existing ones.
func (h *Headers) Add(name, value string) error {
	f, err := New(name, value)
	if err != nil {
		return err
	}
	h.fields = append(h.fields, f)
	return nil
}

// AddLine parses a raw header line and appends it.
func (h *Headers) AddLine(line string) error {
	f, err := Parse(line)
	if err != nil {
		return err
	}
	h.fields = append(h.fields, f)
	return nil
}

// Get returns the value of the first field named name, or "".
func (h *Headers) Get(name string) string {
	if h == nil {
		return ""
	}
	for _, f := range h.fields {
		if f.Is(name) {
			return f.value
		}
	}
	return ""
}

// Values returns every value stored under name, in order.
func (h *Headers) Values(name string) []string {
	if h == nil {
		return nil
	}
	var out []string
	for _, f := range h.fields {
		if f.Is(name) {
			out = append(out, f.value)
		}
	}
	return out
}

// Has reports whether a field named name exists.
func (h *Headers) Has(name string) bool {
	if h == nil {
		return false
	}
	for _, f := range h.fields {
		if f.Is(name) {
			return true
		}
	}
	return false
}

// Del removes every field named name.
func (h *Headers) Del(name string) {
	if h == nil {
		return
	}
	kept := h.fields[:0]
	for _, f := range h.fields {
		if !f.Is(name) {
			kept = append(kept, f)
		}
	}
	h.fields = kept
}

// Fields returns a copy of the fields in insertion order.
func (h *Headers) Fields() []Field {
	if h == nil {
		return nil
	}
	out := make([]Field, len(h.fields))
	copy(out, h.fields)
	return out
}

// Len returns the number of stored fields.
func (h *Headers) Len() int {
	if h == nil {
		return 0
	}
	return len(h.fields)
}

// Clone returns an independent copy.
func (h *Headers) Clone() *Headers {
	return &Headers{fields: h.Fields()}
}

// Map flattens the collection into a map keyed by the first-seen spelling of
// each name. Repeated values are joined with ", ".
func (h *Headers) Map() map[string]string {
	out := make(map[string]string, h.Len())
	if h == nil {
		return out
	}
	seen := make(map[string]string)
	for _, f := range h.fields {
		key := strings.ToLower(f.name)
		name, ok := seen[key]
		if !ok {
			seen[key] = f.name
			out[f.name] = f.value
			continue
		}
		out[name] = out[name] + ", " + f.value
	}
	return out
}

// String renders every field followed by CRLF.
func (h *Headers) String() string {
	var b strings.Builder
	for _, f := range h.Fields() {
		b.WriteString(f.String())
		b.WriteString("\r\n")
	}
	return b.String()
}
