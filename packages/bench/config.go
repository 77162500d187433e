// Package bench measures request latency by sending the same request many
// times. Each worker owns its own client and sends sequentially; workers run
// side by side and share one rate limiter and one set of metrics.
package bench

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for a bench run
type Config struct {
	Requests   int           // total requests; 0 means run for Duration
	Duration   time.Duration // wall-clock limit; 0 means no limit
	Workers    int           // concurrent senders, one client each
	Rate       float64       // requests per second across all workers; 0 means unlimited
	Warmup     int           // requests per worker sent before measuring
	Thresholds Thresholds    // pass/fail thresholds
}

// Thresholds defines pass/fail criteria for a run
type Thresholds struct {
	P50        time.Duration // 50th percentile latency
	P95        time.Duration // 95th percentile latency
	P99        time.Duration // 99th percentile latency
	MaxLatency time.Duration // maximum allowed latency
	ErrorRate  float64       // maximum error rate (0.0 - 1.0)
	MinRPS     float64       // minimum requests per second
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Requests: 100,
		Workers:  1,
	}
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if c.Requests < 0 {
		return fmt.Errorf("requests cannot be negative")
	}
	if c.Duration < 0 {
		return fmt.Errorf("duration cannot be negative")
	}
	if c.Requests == 0 && c.Duration == 0 {
		return fmt.Errorf("either requests or duration must be set")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.Rate < 0 {
		return fmt.Errorf("rate cannot be negative")
	}
	if c.Warmup < 0 {
		return fmt.Errorf("warmup cannot be negative")
	}
	return nil
}

var thresholdPattern = regexp.MustCompile(`^(\w+)\s*([<>]=?)\s*(.+)$`)

// ParseThresholds parses a threshold string like "p95<200ms,errors<0.1%"
func ParseThresholds(s string) (Thresholds, error) {
	var t Thresholds

	if s == "" {
		return t, nil
	}

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if err := parseThresholdPart(part, &t); err != nil {
			return t, err
		}
	}

	return t, nil
}

func parseLatency(name, op, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %s", name, value)
	}
	if op != "<" && op != "<=" {
		return 0, fmt.Errorf("%s threshold must use < or <=", name)
	}
	return d, nil
}

func parseThresholdPart(part string, t *Thresholds) error {
	matches := thresholdPattern.FindStringSubmatch(part)
	if len(matches) != 4 {
		return fmt.Errorf("invalid threshold format: %s", part)
	}

	metric := strings.ToLower(matches[1])
	op := matches[2]
	valueStr := strings.TrimSpace(matches[3])

	var err error
	switch metric {
	case "p50":
		t.P50, err = parseLatency("p50", op, valueStr)
	case "p95":
		t.P95, err = parseLatency("p95", op, valueStr)
	case "p99":
		t.P99, err = parseLatency("p99", op, valueStr)
	case "max", "maxlatency":
		t.MaxLatency, err = parseLatency("max latency", op, valueStr)

	case "errors", "error", "errorrate":
		percent := strings.HasSuffix(valueStr, "%")
		f, perr := strconv.ParseFloat(strings.TrimSuffix(valueStr, "%"), 64)
		if perr != nil {
			return fmt.Errorf("invalid error rate: %s", valueStr)
		}
		if percent {
			f = f / 100
		}
		if op != "<" && op != "<=" {
			return fmt.Errorf("error rate threshold must use < or <=")
		}
		t.ErrorRate = f

	case "rps", "rate":
		f, perr := strconv.ParseFloat(valueStr, 64)
		if perr != nil {
			return fmt.Errorf("invalid RPS: %s", valueStr)
		}
		if op != ">" && op != ">=" {
			return fmt.Errorf("RPS threshold must use > or >=")
		}
		t.MinRPS = f

	default:
		return fmt.Errorf("unknown threshold metric: %s", metric)
	}

	return err
}

// HasThresholds returns true if any thresholds are configured
func (t *Thresholds) HasThresholds() bool {
	return t.P50 > 0 || t.P95 > 0 || t.P99 > 0 || t.MaxLatency > 0 || t.ErrorRate > 0 || t.MinRPS > 0
}

// ThresholdResult holds the result of evaluating a threshold
type ThresholdResult struct {
	Name     string
	Passed   bool
	Expected string
	Actual   string
}
