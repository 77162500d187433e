package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitwire/packages/bench"
	"github.com/abdul-hamid-achik/hitwire/packages/http"
)

var benchCmd = &cobra.Command{
	Use:   "bench [METHOD] <url>",
	Short: "Send the same request repeatedly and report latency",
	Long: `Send one request many times through the selected adapter and report
throughput, latency percentiles and error rate.

Examples:
  # 200 requests over 4 workers
  hitwire bench localhost:8080/health -n 200 -c 4

  # Run for 30 seconds at 50 req/s through net/http
  hitwire bench localhost:8080/health --duration 30s --rate 50 --adapter library

  # With thresholds for CI/CD
  hitwire bench POST localhost:8080/items -d @item.json -n 500 --threshold "p95<200ms,errors<0.1%"`,
	Args: cobra.RangeArgs(1, 2),
	RunE: benchCommand,
}

var (
	benchFlags          requestFlags
	benchRequestsFlag   int
	benchDurationFlag   string
	benchWorkersFlag    int
	benchRateFlag       float64
	benchWarmupFlag     int
	benchThresholdFlag  string
	benchNoProgressFlag bool
	benchNoColorFlag    bool
	benchVerboseFlag    bool
	benchJSONFlag       bool
)

func init() {
	benchFlags.register(benchCmd)
	benchCmd.Flags().IntVarP(&benchRequestsFlag, "requests", "n", getEnvInt("HITWIRE_BENCH_REQUESTS", 0), "Total requests (default 100 when --duration is not set) (env: HITWIRE_BENCH_REQUESTS)")
	benchCmd.Flags().StringVar(&benchDurationFlag, "duration", getEnvString("HITWIRE_BENCH_DURATION", ""), "Run for this long (e.g., 30s, 5m) (env: HITWIRE_BENCH_DURATION)")
	benchCmd.Flags().IntVarP(&benchWorkersFlag, "workers", "c", getEnvInt("HITWIRE_BENCH_WORKERS", 1), "Concurrent workers, one client each (env: HITWIRE_BENCH_WORKERS)")
	benchCmd.Flags().Float64VarP(&benchRateFlag, "rate", "r", getEnvFloat("HITWIRE_BENCH_RATE", 0), "Requests per second across all workers, 0 for unlimited (env: HITWIRE_BENCH_RATE)")
	benchCmd.Flags().IntVar(&benchWarmupFlag, "warmup", 0, "Unmeasured requests per worker before the run")
	benchCmd.Flags().StringVar(&benchThresholdFlag, "threshold", getEnvString("HITWIRE_BENCH_THRESHOLD", ""), "Pass/fail thresholds (e.g., \"p95<200ms,errors<0.1%\")")
	benchCmd.Flags().BoolVar(&benchNoProgressFlag, "no-progress", false, "Disable real-time progress display")
	benchCmd.Flags().BoolVar(&benchNoColorFlag, "no-color", getEnvBool("HITWIRE_NO_COLOR", false), "Disable colored output (env: HITWIRE_NO_COLOR)")
	benchCmd.Flags().BoolVarP(&benchVerboseFlag, "verbose", "v", false, "Show per-outcome breakdown")
	benchCmd.Flags().BoolVar(&benchJSONFlag, "json", false, "Output results as JSON")
}

// buildBenchConfig converts the bench flags into a run config.
func buildBenchConfig() (*bench.Config, error) {
	cfg := bench.DefaultConfig()
	cfg.Requests = benchRequestsFlag
	cfg.Workers = benchWorkersFlag
	cfg.Rate = benchRateFlag
	cfg.Warmup = benchWarmupFlag

	if benchDurationFlag != "" {
		d, err := time.ParseDuration(benchDurationFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid duration: %w", err)
		}
		cfg.Duration = d
	}
	if cfg.Requests == 0 && cfg.Duration == 0 {
		cfg.Requests = bench.DefaultConfig().Requests
	}

	if benchThresholdFlag != "" {
		t, err := bench.ParseThresholds(benchThresholdFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid threshold: %w", err)
		}
		cfg.Thresholds = t
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func benchCommand(cmd *cobra.Command, args []string) error {
	cfg, err := buildBenchConfig()
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	clientConfig, err := benchFlags.loadConfig(cmd)
	if err != nil {
		return err
	}
	// Client logs would interleave with the progress line.
	clientConfig.Verbose = nil

	req, err := benchFlags.buildRequest(args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var reporter *bench.Reporter
	if benchJSONFlag {
		// The JSON document is the only thing written to stdout.
		reporter = bench.NewReporter(bench.WithWriter(cmd.ErrOrStderr()), bench.WithNoProgress(true), bench.WithNoColor(true))
	} else {
		reporter = bench.NewReporter(
			bench.WithWriter(out),
			bench.WithNoColor(benchNoColorFlag || clientConfig.GetNoColor()),
			bench.WithNoProgress(benchNoProgressFlag),
			bench.WithVerbose(benchVerboseFlag),
			bench.WithVersion(version),
		)
	}

	runner, err := bench.NewRunner(cfg, req,
		bench.WithReporter(reporter),
		bench.WithClientFactory(func() (*http.Client, error) {
			return newClient(clientConfig)
		}),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	result, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	if benchJSONFlag {
		jsonReporter := bench.NewReporter(bench.WithWriter(out))
		if err := jsonReporter.JSONSummary(result.Summary, result.Thresholds); err != nil {
			return err
		}
	}

	if result.HasThresholdFailures() {
		return withExitCode(ExitHTTPFailure, nil)
	}
	return nil
}
