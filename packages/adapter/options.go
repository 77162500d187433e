package adapter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Recognized option names. Names are case-insensitive and stored lower-cased.
const (
	OptTimeout       = "timeout"
	OptMaxRedirects  = "maxredirects"
	OptProxyHost     = "proxy_host"
	OptProxyPort     = "proxy_port"
	OptProxyUser     = "proxy_user"
	OptProxyPass     = "proxy_pass"
	OptSSLVerifyPeer = "sslverifypeer"
	// OptTransport holds the nested, adapter-specific option map.
	OptTransport = "transportoptions"
)

// DefaultTimeout applies when neither Connect nor the options give one.
const DefaultTimeout = 10 * time.Second

// Options is an immutable adapter configuration. Every mutator returns a new
// value; the zero value is an empty configuration.
type Options struct {
	values map[string]any
}

// NewOptions validates m and returns a copy of it as Options.
func NewOptions(m map[string]any) (Options, error) {
	o := Options{values: make(map[string]any, len(m))}
	for k, v := range m {
		key := strings.ToLower(k)
		if key == OptTransport {
			nested, err := toMap(key, v)
			if err != nil {
				return Options{}, err
			}
			o.values[key] = nested
			continue
		}
		o.values[key] = v
	}
	return o, nil
}

// MustOptions is NewOptions for literals known to be valid.
func MustOptions(m map[string]any) Options {
	o, err := NewOptions(m)
	if err != nil {
		panic(err)
	}
	return o
}

// ParseOptions accepts Options or a map and returns Options. Any other type
// fails with InvalidConfigError.
func ParseOptions(v any) (Options, error) {
	switch val := v.(type) {
	case nil:
		return Options{}, nil
	case Options:
		return val, nil
	case *Options:
		if val == nil {
			return Options{}, nil
		}
		return *val, nil
	case map[string]any:
		return NewOptions(val)
	case map[string]string:
		m := make(map[string]any, len(val))
		for k, s := range val {
			m[k] = s
		}
		return NewOptions(m)
	default:
		return Options{}, &InvalidConfigError{Got: fmt.Sprintf("%T", v)}
	}
}

func toMap(key string, v any) (map[string]any, error) {
	out := make(map[string]any)
	switch val := v.(type) {
	case nil:
	case map[string]any:
		for k, x := range val {
			out[strings.ToLower(k)] = x
		}
	case map[string]string:
		for k, x := range val {
			out[strings.ToLower(k)] = x
		}
	default:
		return nil, &InvalidConfigError{Key: key, Got: fmt.Sprintf("%T", v)}
	}
	return out, nil
}

// Merge returns base overlaid with overlay. Top-level keys are last-write-wins;
// the nested transport map is merged key by key, never replaced as a whole.
func Merge(base, overlay Options) Options {
	out := Options{values: make(map[string]any, len(base.values)+len(overlay.values))}
	for k, v := range base.values {
		out.values[k] = v
	}
	for k, v := range overlay.values {
		if k != OptTransport {
			out.values[k] = v
		}
	}
	nested := base.Transport()
	for k, v := range overlay.Transport() {
		nested[k] = v
	}
	if len(nested) > 0 {
		out.values[OptTransport] = nested
	} else {
		delete(out.values, OptTransport)
	}
	return out
}

// Get returns the raw value stored under key.
func (o Options) Get(key string) (any, bool) {
	v, ok := o.values[strings.ToLower(key)]
	return v, ok
}

// Has reports whether key is set.
func (o Options) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

// Int returns key as an int, accepting any numeric or numeric-string value.
func (o Options) Int(key string) (int, bool) {
	v, ok := o.Get(key)
	if !ok {
		return 0, false
	}
	return toInt(v)
}

// String returns key formatted as a string.
func (o Options) String(key string) (string, bool) {
	v, ok := o.Get(key)
	if !ok || v == nil {
		return "", false
	}
	return toString(v), true
}

// Bool returns key as a bool.
func (o Options) Bool(key string) (bool, bool) {
	v, ok := o.Get(key)
	if !ok {
		return false, false
	}
	return toBool(v)
}

// Seconds returns an integer-seconds option as a duration.
func (o Options) Seconds(key string) (time.Duration, bool) {
	n, ok := o.Int(key)
	if !ok || n <= 0 {
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}

// Transport returns a copy of the nested transport option map.
func (o Options) Transport() map[string]any {
	out := make(map[string]any)
	if nested, ok := o.values[OptTransport].(map[string]any); ok {
		for k, v := range nested {
			out[k] = v
		}
	}
	return out
}

// TransportValue returns one nested transport option.
func (o Options) TransportValue(key string) (any, bool) {
	nested, ok := o.values[OptTransport].(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := nested[strings.ToLower(key)]
	return v, ok
}

// Set returns a copy with key set to v. Setting the transport key goes
// through Merge so that nested maps are still combined; a value that is not a
// map fails with *InvalidConfigError.
func (o Options) Set(key string, v any) (Options, error) {
	key = strings.ToLower(key)
	if key == OptTransport {
		nested, err := toMap(key, v)
		if err != nil {
			return o, err
		}
		return Merge(o, Options{values: map[string]any{OptTransport: nested}}), nil
	}
	out := o.clone()
	out.values[key] = v
	return out, nil
}

// With is Set for callers that build options from known-good values. An
// invalid transport value leaves the options unchanged.
func (o Options) With(key string, v any) Options {
	out, err := o.Set(key, v)
	if err != nil {
		return o
	}
	return out
}

// WithTransport returns a copy with one nested transport option set.
func (o Options) WithTransport(key string, v any) Options {
	return Merge(o, Options{values: map[string]any{
		OptTransport: map[string]any{strings.ToLower(key): v},
	}})
}

// Without returns a copy with the given top-level keys removed.
func (o Options) Without(keys ...string) Options {
	out := o.clone()
	for _, k := range keys {
		delete(out.values, strings.ToLower(k))
	}
	return out
}

// Map returns a deep copy of the configuration as a plain map.
func (o Options) Map() map[string]any {
	out := make(map[string]any, len(o.values))
	for k, v := range o.values {
		if k == OptTransport {
			out[k] = o.Transport()
			continue
		}
		out[k] = v
	}
	return out
}

// Len returns the number of top-level keys.
func (o Options) Len() int { return len(o.values) }

func (o Options) clone() Options {
	out := Options{values: make(map[string]any, len(o.values))}
	for k, v := range o.values {
		if k == OptTransport {
			out.values[k] = o.Transport()
			continue
		}
		out.values[k] = v
	}
	return out
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case uint16:
		return int(n), true
	case float64:
		return int(n), true
	case time.Duration:
		return int(n / time.Second), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		p, err := strconv.ParseBool(strings.TrimSpace(b))
		return p, err == nil
	case int:
		return b != 0, true
	}
	return false, false
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return fmt.Sprint(v)
}
