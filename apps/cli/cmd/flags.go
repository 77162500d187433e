package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitwire/packages/core/config"
	"github.com/abdul-hamid-achik/hitwire/packages/header"
	"github.com/abdul-hamid-achik/hitwire/packages/http"
)

// requestFlags are shared by send and bench.
type requestFlags struct {
	configPath      string
	headers         []string
	data            string
	dataFile        string
	form            []string
	query           []string
	adapter         string
	timeout         string
	follow          bool
	maxRedirects    int
	nativeRedirects string
	insecure        bool
	proxy           string
	user            string
	digest          bool
	requestIDs      bool
	userAgent       string
	rateLimit       float64
}

func (f *requestFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.configPath, "config", getEnvString("HITWIRE_CONFIG", ""), "Path to config file (env: HITWIRE_CONFIG)")
	fs.StringArrayVarP(&f.headers, "header", "H", nil, "Request header \"Name: value\" (repeatable)")
	fs.StringVarP(&f.data, "data", "d", "", "Request body; @file reads the body from a file")
	fs.StringVar(&f.dataFile, "data-file", "", "Stream the request body from a file")
	fs.StringArrayVarP(&f.form, "form", "F", nil, "Form field key=value, sent urlencoded (repeatable)")
	fs.StringArrayVarP(&f.query, "query", "q", nil, "Query parameter key=value (repeatable)")
	fs.StringVarP(&f.adapter, "adapter", "a", getEnvString("HITWIRE_ADAPTER", ""), "Transport adapter: socket, library (env: HITWIRE_ADAPTER)")
	fs.StringVar(&f.timeout, "timeout", getEnvString("HITWIRE_TIMEOUT", ""), "Request timeout (e.g., 30s, 1m) (env: HITWIRE_TIMEOUT)")
	fs.BoolVarP(&f.follow, "follow", "L", getEnvBool("HITWIRE_FOLLOW", true), "Follow redirects (env: HITWIRE_FOLLOW)")
	fs.IntVar(&f.maxRedirects, "max-redirects", getEnvInt("HITWIRE_MAX_REDIRECTS", http.DefaultMaxRedirects), "Redirect limit (env: HITWIRE_MAX_REDIRECTS)")
	fs.StringVar(&f.nativeRedirects, "native-redirects", getEnvString("HITWIRE_NATIVE_REDIRECTS", ""), "Let the library adapter follow redirects itself: auto, off, force (env: HITWIRE_NATIVE_REDIRECTS)")
	fs.BoolVarP(&f.insecure, "insecure", "k", getEnvBool("HITWIRE_INSECURE", false), "Disable SSL certificate validation (env: HITWIRE_INSECURE)")
	fs.StringVar(&f.proxy, "proxy", getEnvString("HITWIRE_PROXY", ""), "Proxy URL for HTTP requests (env: HITWIRE_PROXY)")
	fs.StringVarP(&f.user, "user", "u", getEnvString("HITWIRE_USER", ""), "Credentials user:password (env: HITWIRE_USER)")
	fs.BoolVar(&f.digest, "digest", false, "Answer Digest challenges with --user instead of sending Basic auth")
	fs.BoolVar(&f.requestIDs, "request-id", getEnvBool("HITWIRE_REQUEST_ID", false), "Add an X-Request-ID header to every send (env: HITWIRE_REQUEST_ID)")
	fs.StringVarP(&f.userAgent, "user-agent", "A", getEnvString("HITWIRE_USER_AGENT", ""), "User-Agent header (env: HITWIRE_USER_AGENT)")
	fs.Float64Var(&f.rateLimit, "rate-limit", getEnvFloat("HITWIRE_RATE_LIMIT", 0), "Client-side requests per second (env: HITWIRE_RATE_LIMIT)")
}

// isSet reports whether a flag was given on the command line or through its
// environment variable.
func isSet(cmd *cobra.Command, name, envKey string) bool {
	if cmd.Flags().Changed(name) {
		return true
	}
	return envKey != "" && os.Getenv(envKey) != ""
}

// overlay converts the flags that were set into a config that takes
// precedence over the file config.
func (f *requestFlags) overlay(cmd *cobra.Command) (*config.Config, error) {
	over := &config.Config{
		Adapter:         f.adapter,
		NativeRedirects: f.nativeRedirects,
		Proxy:           f.proxy,
		UserAgent:       f.userAgent,
		RateLimit:       f.rateLimit,
	}

	if f.timeout != "" {
		d, err := time.ParseDuration(f.timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout: %w", err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("timeout must be positive")
		}
		over.Timeout = int(d.Milliseconds())
	}
	if isSet(cmd, "follow", "HITWIRE_FOLLOW") {
		over.FollowRedirects = config.BoolPtr(f.follow)
	}
	if isSet(cmd, "max-redirects", "HITWIRE_MAX_REDIRECTS") {
		over.MaxRedirects = config.IntPtr(f.maxRedirects)
	}
	if isSet(cmd, "insecure", "HITWIRE_INSECURE") {
		over.ValidateSSL = config.BoolPtr(!f.insecure)
	}
	if isSet(cmd, "request-id", "HITWIRE_REQUEST_ID") {
		over.RequestIDs = config.BoolPtr(f.requestIDs)
	}

	if f.user != "" {
		user, password, _ := strings.Cut(f.user, ":")
		scheme := "basic"
		if f.digest {
			scheme = "digest"
		}
		over.Auth = &config.Auth{Username: user, Password: password, Scheme: scheme}
	}
	return over, nil
}

// loadConfig reads the config file (explicit or discovered), applies layers
// in order and puts the flag overlay on top.
func (f *requestFlags) loadConfig(cmd *cobra.Command, layers ...*config.Config) (*config.Config, error) {
	fileConfig, err := config.LoadConfig(f.configPath)
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}
	over, err := f.overlay(cmd)
	if err != nil {
		return nil, withExitCode(ExitUsageError, err)
	}
	merged := fileConfig
	for _, layer := range layers {
		merged = merged.Merge(layer)
	}
	merged = merged.Merge(over)
	if err := merged.Validate(); err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}
	return merged, nil
}

// newClient builds a client from cfg. Verbose client logs go to stderr.
func newClient(cfg *config.Config) (*http.Client, error) {
	logger := log.New(os.Stderr, "hitwire: ", log.Ltime|log.Lmicroseconds)
	opts, err := cfg.ClientOptions(logger)
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}
	client, err := http.NewClient(opts...)
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}
	return client, nil
}

// splitTarget resolves the positional METHOD and URL arguments. A lone URL
// defaults to GET, or POST when a body or form is given.
func (f *requestFlags) splitTarget(args []string) (method, target string) {
	if len(args) == 2 {
		method, target = strings.ToUpper(args[0]), args[1]
	} else {
		target = args[0]
		method = "GET"
		if f.data != "" || f.dataFile != "" || len(f.form) > 0 {
			method = "POST"
		}
	}
	if !strings.Contains(target, "://") {
		target = "http://" + target
	}
	return method, target
}

func splitPair(s, sep, what string) (string, string, error) {
	k, v, ok := strings.Cut(s, sep)
	if !ok || strings.TrimSpace(k) == "" {
		return "", "", fmt.Errorf("invalid %s %q (want key%svalue)", what, s, sep)
	}
	return strings.TrimSpace(k), v, nil
}

// parseHeaderFlag parses a -H value as a header line. A value without a colon
// is a usage error; a bad name or value keeps its header error.
func parseHeaderFlag(h string) (header.Field, error) {
	field, err := header.Parse(h)
	if err != nil && !strings.Contains(h, ":") {
		return header.Field{}, withExitCode(ExitUsageError, fmt.Errorf("invalid header %q: %w", h, err))
	}
	return field, err
}

// buildRequest assembles the request from the positional arguments and body
// flags.
func (f *requestFlags) buildRequest(args []string) (*http.Request, error) {
	method, target := f.splitTarget(args)
	req := http.NewRequest(method, target)

	for _, h := range f.headers {
		field, err := parseHeaderFlag(h)
		if err != nil {
			return nil, err
		}
		if err := req.AddHeader(field.Name(), field.Value()); err != nil {
			return nil, err
		}
	}
	for _, q := range f.query {
		k, v, err := splitPair(q, "=", "query parameter")
		if err != nil {
			return nil, withExitCode(ExitUsageError, err)
		}
		req.SetQueryParam(k, v)
	}
	for _, p := range f.form {
		k, v, err := splitPair(p, "=", "form field")
		if err != nil {
			return nil, withExitCode(ExitUsageError, err)
		}
		req.SetPostParam(k, v)
	}

	switch {
	case f.data != "" && f.dataFile != "":
		return nil, withExitCode(ExitUsageError, fmt.Errorf("--data and --data-file are mutually exclusive"))
	case strings.HasPrefix(f.data, "@"):
		body, err := os.ReadFile(strings.TrimPrefix(f.data, "@"))
		if err != nil {
			return nil, withExitCode(ExitUsageError, fmt.Errorf("reading body: %w", err))
		}
		req.SetBody(body)
	case f.data != "":
		req.SetBodyString(f.data)
	case f.dataFile != "":
		file, err := os.Open(f.dataFile)
		if err != nil {
			return nil, withExitCode(ExitUsageError, fmt.Errorf("reading body: %w", err))
		}
		// Marshal drains the stream into the request, so the file can close now.
		defer file.Close()
		req.SetBodyStream(file)
		if _, err := req.Marshal(); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// watchedFiles lists the local files a request depends on.
func (f *requestFlags) watchedFiles() []string {
	var files []string
	if strings.HasPrefix(f.data, "@") {
		files = append(files, strings.TrimPrefix(f.data, "@"))
	}
	if f.dataFile != "" {
		files = append(files, f.dataFile)
	}
	if f.configPath != "" {
		files = append(files, f.configPath)
	} else {
		for _, name := range config.ConfigFilenames {
			if _, err := os.Stat(name); err == nil {
				files = append(files, name)
				break
			}
		}
	}
	return files
}
