package config

import "github.com/abdul-hamid-achik/hitwire/packages/http"

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Adapter:         "socket",
		Timeout:         int(http.DefaultTimeout.Milliseconds()),
		FollowRedirects: BoolPtr(true),
		MaxRedirects:    IntPtr(http.DefaultMaxRedirects),
		NativeRedirects: http.NativeRedirectsAuto.String(),
		ValidateSSL:     BoolPtr(true),
		UserAgent:       http.DefaultUserAgent,
		RequestIDs:      BoolPtr(false),
		Verbose:         BoolPtr(false),
		NoColor:         BoolPtr(false),
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	d := DefaultConfig()
	return c.Adapter == d.Adapter &&
		c.Timeout == d.Timeout &&
		c.GetFollowRedirects() == d.GetFollowRedirects() &&
		c.GetMaxRedirects() == d.GetMaxRedirects() &&
		c.NativeRedirects == d.NativeRedirects &&
		c.GetValidateSSL() == d.GetValidateSSL() &&
		c.Proxy == d.Proxy &&
		c.UserAgent == d.UserAgent &&
		len(c.Headers) == 0 &&
		c.Auth == nil &&
		c.GetRequestIDs() == d.GetRequestIDs() &&
		c.RateLimit == 0 &&
		len(c.AdapterOptions) == 0 &&
		c.GetVerbose() == d.GetVerbose() &&
		c.GetNoColor() == d.GetNoColor()
}
