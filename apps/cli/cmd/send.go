package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitwire/packages/capture"
	"github.com/abdul-hamid-achik/hitwire/packages/core/config"
	"github.com/abdul-hamid-achik/hitwire/packages/curl"
	"github.com/abdul-hamid-achik/hitwire/packages/http"
	"github.com/abdul-hamid-achik/hitwire/packages/output"
)

// WatchDebounceDelay is the delay before resending after a file change.
const WatchDebounceDelay = 100 * time.Millisecond

var sendCmd = &cobra.Command{
	Use:   "send [METHOD] <url>",
	Short: "Send one request and print the response",
	Long: `Send one HTTP/1.x request through the selected adapter and print the
status line, headers and body.

Examples:
  hitwire send example.com
  hitwire send -i https://api.example.com/users/1
  hitwire send POST localhost:8080/items -H "Content-Type: application/json" -d '{"name":"x"}'
  hitwire send PUT localhost:8080/blob --data-file ./blob.bin --adapter library
  hitwire send localhost:8080/login -F user=alice -F password=secret
  hitwire send api.example.com/users -j "0.name" --capture id=body.0.id
  hitwire send localhost:8080/private -u alice:secret --digest
  hitwire send --curl "curl -X POST -H 'Accept: application/json' https://api.example.com/items -d '{}'"
  hitwire send POST localhost:8080/items -d x --print-curl`,
	Args: cobra.MaximumNArgs(2),
	RunE: sendCommand,
}

var (
	sendFlags        requestFlags
	sendCaptureFlag  []string
	sendJSONPathFlag string
	sendOutputFlag   string
	sendVerboseFlag  bool
	sendIncludeFlag  bool
	sendNoBodyFlag   bool
	sendNoColorFlag  bool
	sendFailFlag     bool
	sendWatchFlag    bool
	sendCurlFlag     string
	sendPrintCurl    bool
)

func init() {
	sendFlags.register(sendCmd)
	sendCmd.Flags().StringArrayVar(&sendCaptureFlag, "capture", nil, "Capture name=source.path, source is body, header, status or duration (repeatable)")
	sendCmd.Flags().StringVarP(&sendJSONPathFlag, "json-path", "j", "", "Print only the value at this JSON path (gjson syntax)")
	sendCmd.Flags().StringVarP(&sendOutputFlag, "output", "o", getEnvString("HITWIRE_OUTPUT", "console"), "Output format: console, json (env: HITWIRE_OUTPUT)")
	sendCmd.Flags().BoolVarP(&sendVerboseFlag, "verbose", "v", getEnvBool("HITWIRE_VERBOSE", false), "Print the raw request, headers and client logs (env: HITWIRE_VERBOSE)")
	sendCmd.Flags().BoolVarP(&sendIncludeFlag, "include", "i", false, "Print response headers")
	sendCmd.Flags().BoolVar(&sendNoBodyFlag, "no-body", false, "Do not print the response body")
	sendCmd.Flags().BoolVar(&sendNoColorFlag, "no-color", getEnvBool("HITWIRE_NO_COLOR", false), "Disable colored output (env: HITWIRE_NO_COLOR)")
	sendCmd.Flags().BoolVarP(&sendFailFlag, "fail", "f", getEnvBool("HITWIRE_FAIL", false), "Exit non-zero on 4xx/5xx responses (env: HITWIRE_FAIL)")
	sendCmd.Flags().BoolVarP(&sendWatchFlag, "watch", "w", false, "Resend when the body file or config file changes")
	sendCmd.Flags().StringVar(&sendCurlFlag, "curl", "", "Build the request from a curl command line; @file reads it from a file")
	sendCmd.Flags().BoolVar(&sendPrintCurl, "print-curl", false, "Print the equivalent curl command instead of sending")
}

func newSendFormatter(w io.Writer, cfg *config.Config) (output.Formatter, error) {
	verbose := sendVerboseFlag || cfg.GetVerbose()
	switch strings.ToLower(sendOutputFlag) {
	case "json":
		return output.NewJSONFormatter(output.JSONWithWriter(w), output.JSONWithVerbose(verbose)), nil
	case "console", "":
		return output.NewConsoleFormatter(
			output.WithWriter(w),
			output.WithVerbose(verbose),
			output.WithNoColor(sendNoColorFlag || cfg.GetNoColor()),
			output.WithHeaders(sendIncludeFlag),
			output.WithBody(!sendNoBodyFlag),
		), nil
	default:
		return nil, withExitCode(ExitUsageError, fmt.Errorf("unknown output format %q (want console or json)", sendOutputFlag))
	}
}

func parseCaptures(exprs []string) ([]*capture.Capture, error) {
	captures := make([]*capture.Capture, 0, len(exprs))
	for _, expr := range exprs {
		c, err := capture.Parse(expr)
		if err != nil {
			return nil, withExitCode(ExitUsageError, err)
		}
		captures = append(captures, c)
	}
	return captures, nil
}

// sendOnce performs one exchange and reports it through formatter. The
// returned error decides the exit code.
func sendOnce(cmd *cobra.Command, args []string, formatter output.Formatter) error {
	cfg, req, err := resolveSend(cmd, args)
	if err != nil {
		return err
	}
	if sendVerboseFlag {
		cfg.Verbose = config.BoolPtr(true)
	}
	if sendPrintCurl {
		fmt.Fprintln(cmd.OutOrStdout(), curl.FormatConfig(curl.Format(req), cfg))
		return nil
	}
	captures, err := parseCaptures(sendCaptureFlag)
	if err != nil {
		return err
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	ex := &output.Exchange{
		Method:  req.Method,
		URL:     req.BuildURL(),
		Adapter: strings.ToLower(cfg.Adapter),
		Query:   sendJSONPathFlag,
	}
	if ex.Adapter == "" {
		ex.Adapter = "socket"
	}

	start := time.Now()
	resp, sendErr := client.Send(req)
	ex.RawRequest = client.LastRawRequest()
	ex.Redirects = client.RedirectionsCount()
	if sendErr != nil {
		ex.Err = sendErr
		formatter.FormatExchange(ex)
		flush(formatter, time.Since(start))
		return withExitCode(exitCodeFor(sendErr), nil)
	}

	ex.Response = resp
	if len(captures) > 0 {
		ex.Captures = capture.ExtractAll(resp, captures)
	}
	if sendJSONPathFlag != "" {
		ex.QueryValue, ex.QueryFound = capture.NewExtractor(resp).Query(sendJSONPathFlag)
	}
	formatter.FormatExchange(ex)
	flush(formatter, time.Since(start))

	if sendFailFlag && resp.StatusCode >= 400 {
		return withExitCode(ExitHTTPFailure, nil)
	}
	return nil
}

// resolveSend builds the config and request either from the positional
// arguments or from --curl. Explicit flags win over both.
func resolveSend(cmd *cobra.Command, args []string) (*config.Config, *http.Request, error) {
	if sendCurlFlag == "" {
		if len(args) == 0 {
			return nil, nil, withExitCode(ExitUsageError, fmt.Errorf("a URL or --curl is required"))
		}
		cfg, err := sendFlags.loadConfig(cmd)
		if err != nil {
			return nil, nil, err
		}
		req, err := sendFlags.buildRequest(args)
		if err != nil {
			return nil, nil, err
		}
		return cfg, req, nil
	}

	if len(args) > 0 {
		return nil, nil, withExitCode(ExitUsageError, fmt.Errorf("--curl cannot be combined with a URL argument"))
	}
	cmdline := sendCurlFlag
	if strings.HasPrefix(cmdline, "@") {
		data, err := os.ReadFile(strings.TrimPrefix(cmdline, "@"))
		if err != nil {
			return nil, nil, withExitCode(ExitUsageError, fmt.Errorf("reading curl command: %w", err))
		}
		commands, err := curl.ParseAll(bytes.NewReader(data))
		if err != nil {
			return nil, nil, withExitCode(ExitUsageError, err)
		}
		if len(commands) != 1 {
			return nil, nil, withExitCode(ExitUsageError, fmt.Errorf("%s holds %d curl commands, want 1", cmdline, len(commands)))
		}
		return curlRequest(cmd, commands[0])
	}
	c, err := curl.Parse(cmdline)
	if err != nil {
		return nil, nil, withExitCode(ExitUsageError, err)
	}
	return curlRequest(cmd, c)
}

func curlRequest(cmd *cobra.Command, c *curl.Command) (*config.Config, *http.Request, error) {
	cfg, err := sendFlags.loadConfig(cmd, c.Config())
	if err != nil {
		return nil, nil, err
	}
	req := c.Request()
	for _, h := range sendFlags.headers {
		field, err := parseHeaderFlag(h)
		if err != nil {
			return nil, nil, err
		}
		if err := req.SetHeader(field.Name(), field.Value()); err != nil {
			return nil, nil, err
		}
	}
	return cfg, req, nil
}

func flush(formatter output.Formatter, d time.Duration) {
	if flushable, ok := formatter.(output.Flushable); ok {
		if err := flushable.Flush(d); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to write output: %v\n", err)
		}
	}
}

func sendCommand(cmd *cobra.Command, args []string) error {
	cfg, err := sendFlags.loadConfig(cmd)
	if err != nil {
		return err
	}
	formatter, err := newSendFormatter(cmd.OutOrStdout(), cfg)
	if err != nil {
		return err
	}

	err = sendOnce(cmd, args, formatter)
	if !sendWatchFlag {
		return err
	}
	return watchAndResend(cmd, args, cfg)
}

// watchAndResend resends the request whenever a file it depends on changes.
func watchAndResend(cmd *cobra.Command, args []string, cfg *config.Config) error {
	files := sendFlags.watchedFiles()
	if len(files) == 0 {
		return withExitCode(ExitUsageError, fmt.Errorf("--watch needs a body file (-d @file, --data-file) or a config file"))
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	wanted := make(map[string]bool, len(files))
	watchedDirs := make(map[string]bool)
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return err
		}
		wanted[abs] = true
		dir := filepath.Dir(abs)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
			watchedDirs[dir] = true
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nWatching %s for changes... (press Ctrl+C to stop)\n", strings.Join(files, ", "))

	var debounceTimer *time.Timer
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			abs, _ := filepath.Abs(event.Name)
			if !wanted[abs] || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				fmt.Fprintf(out, "\nFile changed: %s\nResending...\n\n", name)
				formatter, err := newSendFormatter(out, cfg)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
					return
				}
				if err := sendOnce(cmd, args, formatter); err != nil {
					var ee *exitError
					if !errors.As(err, &ee) || ee.err != nil {
						formatter.FormatError(err)
					}
				}
				fmt.Fprintf(out, "\nWatching for changes... (press Ctrl+C to stop)\n")
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watcher error: %v\n", err)
		}
	}
}
