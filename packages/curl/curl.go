// Package curl translates between curl command lines and hitwire requests.
//
// Parse understands the curl flags that map onto the client: method, headers,
// body, form fields, credentials, redirects, TLS validation, proxy and
// timeouts. Unknown flags are skipped. Format goes the other way and renders a
// request as a curl command that can be pasted into a shell.
package curl

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitwire/packages/core/config"
	"github.com/abdul-hamid-achik/hitwire/packages/header"
	"github.com/abdul-hamid-achik/hitwire/packages/http"
)

// Command is a parsed curl invocation.
type Command struct {
	Method       string
	URL          string
	Headers      *header.Headers
	Body         string
	Form         map[string]string
	User         string
	Digest       bool
	Insecure     bool
	Follow       bool
	MaxRedirects int // -1 when not given
	Proxy        string
	Timeout      time.Duration
	Head         bool
}

// valueFlags take the next token as their argument.
var valueFlags = map[string]bool{
	"-X": true, "--request": true,
	"-H": true, "--header": true,
	"-d": true, "--data": true, "--data-raw": true, "--data-binary": true, "--data-ascii": true, "--data-urlencode": true,
	"-F": true, "--form": true,
	"-u": true, "--user": true,
	"-A": true, "--user-agent": true,
	"-e": true, "--referer": true,
	"-b": true, "--cookie": true,
	"-x": true, "--proxy": true,
	"-m": true, "--max-time": true,
	"--max-redirs": true,
	"--connect-timeout": true,
}

// switchFlags never take a value, so the next token is left alone.
var switchFlags = map[string]bool{
	"-s": true, "--silent": true,
	"-S": true, "--show-error": true,
	"-v": true, "--verbose": true,
	"-i": true, "--include": true,
	"-f": true, "--fail": true,
	"-g": true, "--globoff": true,
	"--compressed": true,
}

// Parse parses a single curl command line.
func Parse(cmdline string) (*Command, error) {
	cmdline = strings.TrimSpace(cmdline)
	switch {
	case cmdline == "curl":
		return nil, fmt.Errorf("no URL specified")
	case strings.HasPrefix(cmdline, "curl "):
		cmdline = strings.TrimPrefix(cmdline, "curl ")
	}

	c := &Command{
		Headers:      header.NewHeaders(),
		Form:         make(map[string]string),
		MaxRedirects: -1,
	}
	explicitMethod := false
	var data []string

	tokens := tokenize(cmdline)
	for i := 0; i < len(tokens); i++ {
		token := tokens[i]

		name, value, inline := splitInline(token)
		if valueFlags[name] && !inline {
			if i+1 >= len(tokens) {
				return nil, fmt.Errorf("missing value for %s", name)
			}
			i++
			value = tokens[i]
		}

		switch name {
		case "-X", "--request":
			c.Method = strings.ToUpper(value)
			explicitMethod = true
		case "-H", "--header":
			if err := c.Headers.AddLine(value); err != nil {
				return nil, fmt.Errorf("header %q: %w", value, err)
			}
		case "-d", "--data", "--data-raw", "--data-binary", "--data-ascii":
			data = append(data, value)
		case "--data-urlencode":
			data = append(data, encodeDataArg(value))
		case "-F", "--form":
			k, v, ok := strings.Cut(value, "=")
			if !ok {
				return nil, fmt.Errorf("invalid form field %q", value)
			}
			c.Form[k] = v
		case "-u", "--user":
			c.User = value
		case "--digest":
			c.Digest = true
		case "--basic":
			c.Digest = false
		case "-A", "--user-agent":
			if err := c.Headers.Set("User-Agent", value); err != nil {
				return nil, err
			}
		case "-e", "--referer":
			if err := c.Headers.Set("Referer", value); err != nil {
				return nil, err
			}
		case "-b", "--cookie":
			if err := c.Headers.Add("Cookie", value); err != nil {
				return nil, err
			}
		case "-k", "--insecure":
			c.Insecure = true
		case "-L", "--location":
			c.Follow = true
		case "--max-redirs":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid --max-redirs %q", value)
			}
			c.MaxRedirects = n
		case "-x", "--proxy":
			c.Proxy = value
		case "-m", "--max-time":
			secs, err := strconv.ParseFloat(value, 64)
			if err != nil || secs <= 0 {
				return nil, fmt.Errorf("invalid --max-time %q", value)
			}
			c.Timeout = time.Duration(secs * float64(time.Second))
		case "-I", "--head":
			c.Head = true
		case "--url":
			c.URL = value
		default:
			switch {
			case valueFlags[name], switchFlags[name]:
			case strings.HasPrefix(token, "-"):
				// Skip unknown flags with potential values
				if i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "-") && !isURL(tokens[i+1]) {
					i++
				}
			case c.URL == "":
				c.URL = token
			}
		}
	}

	if c.URL == "" {
		return nil, fmt.Errorf("no URL found in curl command")
	}
	if !strings.Contains(c.URL, "://") {
		c.URL = "http://" + c.URL
	}

	if len(data) > 0 {
		c.Body = strings.Join(data, "&")
	}
	if !explicitMethod {
		switch {
		case c.Head:
			c.Method = "HEAD"
		case c.Body != "" || len(c.Form) > 0:
			c.Method = "POST"
		default:
			c.Method = "GET"
		}
	}
	return c, nil
}

// ParseAll reads commands separated by newlines, joining lines that end in a
// backslash. Blank lines and # comments are skipped.
func ParseAll(r io.Reader) ([]*Command, error) {
	var (
		commands []*Command
		current  strings.Builder
	)
	flushCurrent := func() error {
		if current.Len() == 0 {
			return nil
		}
		c, err := Parse(current.String())
		if err != nil {
			return fmt.Errorf("command %d: %w", len(commands)+1, err)
		}
		commands = append(commands, c)
		current.Reset()
		return nil
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasSuffix(line, "\\") {
			current.WriteString(strings.TrimSuffix(line, "\\"))
			current.WriteString(" ")
			continue
		}
		current.WriteString(line)
		if err := flushCurrent(); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read commands: %w", err)
	}
	if err := flushCurrent(); err != nil {
		return nil, err
	}
	return commands, nil
}

// Request builds the request the command describes.
func (c *Command) Request() *http.Request {
	req := http.NewRequest(c.Method, c.URL)
	req.Headers = c.Headers.Clone()
	if c.Body != "" {
		req.SetBodyString(c.Body)
	}
	for k, v := range c.Form {
		req.SetPostParam(k, v)
	}
	if c.Timeout > 0 {
		req.SetTimeout(c.Timeout)
	}
	return req
}

// Config returns the client settings the command implies. Fields curl left at
// its defaults stay unset so they do not override a loaded config.
func (c *Command) Config() *config.Config {
	cfg := &config.Config{Proxy: c.Proxy}
	if c.Follow {
		cfg.FollowRedirects = config.BoolPtr(true)
	}
	if c.MaxRedirects >= 0 {
		cfg.MaxRedirects = config.IntPtr(c.MaxRedirects)
	}
	if c.Insecure {
		cfg.ValidateSSL = config.BoolPtr(false)
	}
	if c.User != "" {
		user, password, _ := strings.Cut(c.User, ":")
		scheme := "basic"
		if c.Digest {
			scheme = "digest"
		}
		cfg.Auth = &config.Auth{Username: user, Password: password, Scheme: scheme}
	}
	return cfg
}

// Format renders req as a curl command line. Form posts are written as
// --data with the encoded body.
func Format(req *http.Request) string {
	parts := []string{"curl"}
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = "GET"
	}

	body := req.Body
	if len(body) == 0 && len(req.PostParams) > 0 {
		form := url.Values{}
		for k, v := range req.PostParams {
			form.Set(k, v)
		}
		body = []byte(form.Encode())
	}

	switch {
	case method == "HEAD":
		parts = append(parts, "-I")
	case method == "GET" && len(body) == 0:
	case method == "POST" && len(body) > 0:
	default:
		parts = append(parts, "-X", method)
	}

	for _, f := range req.Headers.Fields() {
		parts = append(parts, "-H", quote(f.String()))
	}
	if req.Auth != nil {
		if req.Auth.Scheme == http.AuthDigest {
			parts = append(parts, "--digest")
		}
		parts = append(parts, "-u", quote(req.Auth.Username+":"+req.Auth.Password))
	}
	if len(body) > 0 {
		parts = append(parts, "--data-raw", quote(string(body)))
	}
	if req.Timeout > 0 {
		parts = append(parts, "--max-time", strconv.FormatFloat(req.Timeout.Seconds(), 'f', -1, 64))
	}
	parts = append(parts, quote(req.BuildURL()))
	return strings.Join(parts, " ")
}

// FormatConfig appends the flags for the client settings in cfg.
func FormatConfig(cmdline string, cfg *config.Config) string {
	var parts []string
	if cfg.GetFollowRedirects() {
		parts = append(parts, "-L", "--max-redirs", strconv.Itoa(cfg.GetMaxRedirects()))
	}
	if !cfg.GetValidateSSL() {
		parts = append(parts, "-k")
	}
	if cfg.Proxy != "" {
		parts = append(parts, "-x", quote(cfg.Proxy))
	}
	if cfg.Auth != nil && cfg.Auth.Username != "" {
		if strings.EqualFold(cfg.Auth.Scheme, "digest") {
			parts = append(parts, "--digest")
		}
		parts = append(parts, "-u", quote(cfg.Auth.Username+":"+cfg.Auth.Password))
	}
	names := make([]string, 0, len(cfg.Headers))
	for name := range cfg.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		parts = append(parts, "-H", quote(name+": "+cfg.Headers[name]))
	}
	if len(parts) == 0 {
		return cmdline
	}
	rest := strings.TrimPrefix(cmdline, "curl")
	return "curl " + strings.Join(parts, " ") + rest
}

// splitInline separates --flag=value forms.
func splitInline(token string) (name, value string, inline bool) {
	if strings.HasPrefix(token, "--") {
		if k, v, ok := strings.Cut(token, "="); ok {
			return k, v, true
		}
	}
	return token, "", false
}

// encodeDataArg applies curl's --data-urlencode rules: "name=content" encodes
// only the content, a bare value is encoded whole.
func encodeDataArg(arg string) string {
	if k, v, ok := strings.Cut(arg, "="); ok {
		if k == "" {
			return url.QueryEscape(v)
		}
		return k + "=" + url.QueryEscape(v)
	}
	return url.QueryEscape(arg)
}

// quote wraps s in single quotes when the shell would split or expand it.
func quote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n'\"\\$`!*?&;|<>(){}[]#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// tokenize splits a curl command into tokens, respecting quotes.
func tokenize(cmd string) []string {
	var tokens []string
	var current strings.Builder
	inSingleQuote := false
	inDoubleQuote := false
	escaped := false
	started := false

	for _, r := range cmd {
		if escaped {
			current.WriteRune(r)
			escaped = false
			continue
		}

		switch r {
		case '\\':
			if inSingleQuote {
				current.WriteRune(r)
			} else {
				escaped = true
			}
		case '\'':
			if !inDoubleQuote {
				inSingleQuote = !inSingleQuote
				started = true
			} else {
				current.WriteRune(r)
			}
		case '"':
			if !inSingleQuote {
				inDoubleQuote = !inDoubleQuote
				started = true
			} else {
				current.WriteRune(r)
			}
		case ' ', '\t', '\n':
			if inSingleQuote || inDoubleQuote {
				current.WriteRune(r)
			} else if current.Len() > 0 || started {
				tokens = append(tokens, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 || started {
		tokens = append(tokens, current.String())
	}

	return tokens
}

// isURL checks if a string looks like a URL.
func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
