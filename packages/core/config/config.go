package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/hitwire/packages/adapter"
	"github.com/abdul-hamid-achik/hitwire/packages/http"
)

// Auth holds credentials applied to every request.
type Auth struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	Scheme   string `json:"scheme,omitempty" yaml:"scheme,omitempty"` // basic or digest
}

// Config represents the hitwire configuration
type Config struct {
	Adapter         string            `json:"adapter,omitempty" yaml:"adapter,omitempty"`
	Timeout         int               `json:"timeout,omitempty" yaml:"timeout,omitempty"` // milliseconds
	FollowRedirects *bool             `json:"followRedirects,omitempty" yaml:"followRedirects,omitempty"`
	MaxRedirects    *int              `json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty"`
	NativeRedirects string            `json:"nativeRedirects,omitempty" yaml:"nativeRedirects,omitempty"`
	ValidateSSL     *bool             `json:"validateSSL,omitempty" yaml:"validateSSL,omitempty"`
	Proxy           string            `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	UserAgent       string            `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`
	Headers         map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"` // Default headers for all requests
	Auth            *Auth             `json:"auth,omitempty" yaml:"auth,omitempty"`
	RequestIDs      *bool             `json:"requestIds,omitempty" yaml:"requestIds,omitempty"`
	RateLimit       float64           `json:"rateLimit,omitempty" yaml:"rateLimit,omitempty"` // requests per second
	RateBurst       int               `json:"rateBurst,omitempty" yaml:"rateBurst,omitempty"`
	AdapterOptions  map[string]any    `json:"adapterOptions,omitempty" yaml:"adapterOptions,omitempty"`
	Verbose         *bool             `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	NoColor         *bool             `json:"noColor,omitempty" yaml:"noColor,omitempty"`
}

// BoolPtr returns a pointer to b, for building configs in code.
func BoolPtr(b bool) *bool {
	return &b
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetMaxRedirects returns the redirect limit, defaulting to http.DefaultMaxRedirects
func (c *Config) GetMaxRedirects() int {
	if c.MaxRedirects == nil {
		return http.DefaultMaxRedirects
	}
	return *c.MaxRedirects
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// GetRequestIDs returns the request ID setting, defaulting to false
func (c *Config) GetRequestIDs() bool {
	return getBool(c.RequestIDs, false)
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// ConfigFilenames contains the possible config file names, in search order
var ConfigFilenames = []string{
	".hitwire.yaml",
	".hitwire.yml",
	".hitwire.json",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	return DefaultConfig(), nil
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// loadConfigFromFile loads configuration from a specific file. Files ending in
// .json are decoded as JSON, everything else as YAML.
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if isJSON(path) {
		err = json.Unmarshal(data, config)
	} else {
		err = yaml.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, nil
}

// Validate checks the values that cannot be caught by decoding alone.
func (c *Config) Validate() error {
	if _, err := adapter.New(c.Adapter); err != nil {
		return err
	}
	if c.NativeRedirects != "" {
		if _, err := http.ParseNativeRedirectMode(c.NativeRedirects); err != nil {
			return err
		}
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if c.MaxRedirects != nil && *c.MaxRedirects < 0 {
		return fmt.Errorf("maxRedirects must not be negative")
	}
	if c.Auth != nil {
		switch strings.ToLower(c.Auth.Scheme) {
		case "", "basic", "digest":
		default:
			return fmt.Errorf("unknown auth scheme %q", c.Auth.Scheme)
		}
	}
	if _, err := adapter.ParseOptions(c.AdapterOptions); err != nil {
		return err
	}
	return nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c

	if other.Adapter != "" {
		result.Adapter = other.Adapter
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.NativeRedirects != "" {
		result.NativeRedirects = other.NativeRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.UserAgent != "" {
		result.UserAgent = other.UserAgent
	}
	if other.RateLimit > 0 {
		result.RateLimit = other.RateLimit
	}
	if other.RateBurst > 0 {
		result.RateBurst = other.RateBurst
	}
	if other.Auth != nil {
		result.Auth = other.Auth
	}

	// Pointer fields only override if explicitly set in other config
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.MaxRedirects != nil {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.RequestIDs != nil {
		result.RequestIDs = other.RequestIDs
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	if len(other.Headers) > 0 {
		headers := make(map[string]string, len(c.Headers)+len(other.Headers))
		for k, v := range c.Headers {
			headers[k] = v
		}
		for k, v := range other.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}

	if len(other.AdapterOptions) > 0 {
		base, _ := adapter.ParseOptions(c.AdapterOptions)
		over, err := adapter.ParseOptions(other.AdapterOptions)
		if err == nil {
			result.AdapterOptions = adapter.Merge(base, over).Map()
		}
	}

	return &result
}

// SaveConfig saves the configuration to a file, as JSON or YAML depending on
// the extension.
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if isJSON(path) {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ClientOptions converts the configuration into client options. The logger is
// attached only when verbose output is enabled.
func (c *Config) ClientOptions(logger *log.Logger) ([]http.ClientOption, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	a, _ := adapter.New(c.Adapter)
	opts := []http.ClientOption{
		http.WithAdapter(a),
		http.WithFollowRedirects(c.GetFollowRedirects()),
		http.WithMaxRedirects(c.GetMaxRedirects()),
		http.WithValidateSSL(c.GetValidateSSL()),
		http.WithRequestIDs(c.GetRequestIDs()),
	}
	if c.Timeout > 0 {
		opts = append(opts, http.WithTimeout(time.Duration(c.Timeout)*time.Millisecond))
	}
	if c.NativeRedirects != "" {
		mode, _ := http.ParseNativeRedirectMode(c.NativeRedirects)
		opts = append(opts, http.WithNativeRedirects(mode))
	}
	if c.Proxy != "" {
		opts = append(opts, http.WithProxy(c.Proxy))
	}
	if c.UserAgent != "" {
		opts = append(opts, http.WithUserAgent(c.UserAgent))
	}
	if len(c.Headers) > 0 {
		opts = append(opts, http.WithDefaultHeaders(c.Headers))
	}
	if c.Auth != nil && c.Auth.Username != "" {
		if strings.EqualFold(c.Auth.Scheme, "digest") {
			opts = append(opts, http.WithDigestAuth(c.Auth.Username, c.Auth.Password))
		} else {
			opts = append(opts, http.WithAuth(c.Auth.Username, c.Auth.Password))
		}
	}
	if c.RateLimit > 0 {
		burst := c.RateBurst
		if burst <= 0 {
			burst = 1
		}
		opts = append(opts, http.WithRateLimit(c.RateLimit, burst))
	}
	if len(c.AdapterOptions) > 0 {
		ao, _ := adapter.ParseOptions(c.AdapterOptions)
		opts = append(opts, http.WithAdapterOptions(ao))
	}
	if logger != nil && c.GetVerbose() {
		opts = append(opts, http.WithLogger(logger))
	}
	return opts, nil
}
