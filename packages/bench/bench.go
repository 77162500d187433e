package bench

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/abdul-hamid-achik/hitwire/packages/adapter"
	"github.com/abdul-hamid-achik/hitwire/packages/http"
	"github.com/abdul-hamid-achik/hitwire/packages/output"
)

// ClientFactory builds one client per worker. Clients are not shared between
// goroutines.
type ClientFactory func() (*http.Client, error)

// Runner executes a bench run
type Runner struct {
	config    *Config
	newClient ClientFactory
	request   *http.Request
	metrics   *Metrics
	reporter  *Reporter
	limiter   *rate.Limiter

	issued atomic.Int64
}

// RunnerOption configures the runner
type RunnerOption func(*Runner)

// WithReporter sets the reporter
func WithReporter(reporter *Reporter) RunnerOption {
	return func(r *Runner) {
		r.reporter = reporter
	}
}

// WithClientFactory sets how worker clients are built
func WithClientFactory(f ClientFactory) RunnerOption {
	return func(r *Runner) {
		r.newClient = f
	}
}

// NewRunner creates a runner that sends req repeatedly. A body stream on req
// is read once here so every send carries the same bytes.
func NewRunner(config *Config, req *http.Request, opts ...RunnerOption) (*Runner, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("request required")
	}
	if err := http.ValidateURL(req.BuildURL()); err != nil {
		return nil, err
	}

	r := &Runner{
		config:  config,
		request: req,
		metrics: NewMetrics(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.newClient == nil {
		r.newClient = func() (*http.Client, error) { return http.NewClient() }
	}
	if r.reporter == nil {
		r.reporter = NewReporter()
	}
	if config.Rate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(config.Rate), 1)
	}

	if _, err := req.Marshal(); err != nil {
		return nil, err
	}
	return r, nil
}

// Metrics exposes the collector, mainly for tests.
func (r *Runner) Metrics() *Metrics {
	return r.metrics
}

// Run executes the bench run
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	clients := make([]*http.Client, r.config.Workers)
	for i := range clients {
		c, err := r.newClient()
		if err != nil {
			return nil, fmt.Errorf("creating client: %w", err)
		}
		clients[i] = c
	}

	r.reporter.Header(r.request.Method, r.request.BuildURL(), r.config)

	if r.config.Warmup > 0 {
		r.reporter.Warmup(r.config.Warmup)
		for _, c := range clients {
			for i := 0; i < r.config.Warmup; i++ {
				_, _ = c.Send(r.nextRequest())
			}
		}
	}

	if r.config.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Duration)
		defer cancel()
	}

	r.metrics.Start()

	progressDone := make(chan struct{})
	progressStopped := make(chan struct{})
	go func() {
		defer close(progressStopped)
		r.progressLoop(progressDone)
	}()

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c *http.Client) {
			defer wg.Done()
			r.metrics.IncrementActiveWorkers()
			defer r.metrics.DecrementActiveWorkers()
			r.work(ctx, c)
		}(c)
	}
	wg.Wait()

	r.metrics.Stop()
	close(progressDone)
	<-progressStopped
	r.reporter.ClearProgress()

	summary := r.metrics.GetSummary()
	var thresholdResults []ThresholdResult
	if r.config.Thresholds.HasThresholds() {
		thresholdResults = r.metrics.EvaluateThresholds(r.config.Thresholds)
	}

	r.reporter.Summary(summary, thresholdResults)

	passed := true
	for _, tr := range thresholdResults {
		if !tr.Passed {
			passed = false
			break
		}
	}

	return &Result{
		Summary:    summary,
		Thresholds: thresholdResults,
		Passed:     passed,
	}, nil
}

// claim reserves one request from the budget.
func (r *Runner) claim() bool {
	if r.config.Requests == 0 {
		return true
	}
	return r.issued.Add(1) <= int64(r.config.Requests)
}

func (r *Runner) work(ctx context.Context, c *http.Client) {
	for ctx.Err() == nil && r.claim() {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return
			}
		}
		r.sendOne(c)
	}
}

// nextRequest returns a shallow copy so the template is never mutated by a
// send.
func (r *Runner) nextRequest() *http.Request {
	req := *r.request
	return &req
}

func (r *Runner) sendOne(c *http.Client) {
	start := time.Now()
	resp, err := c.Send(r.nextRequest())
	duration := time.Since(start)

	if err != nil {
		var te *adapter.TransportError
		if errors.As(err, &te) && te.Timeout {
			r.metrics.RecordTimeout(output.KindTimeout)
			return
		}
		r.metrics.Record(output.ErrorKind(err), duration, c.RedirectionsCount(), err)
		return
	}

	var recordErr error
	if resp.StatusCode >= 400 {
		recordErr = fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	r.metrics.Record(statusClass(resp.StatusCode), duration, c.RedirectionsCount(), recordErr)
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

// progressLoop updates the progress display
func (r *Runner) progressLoop(done chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			r.reporter.Progress(r.metrics.GetCurrentStats(), r.config)
		}
	}
}

// Result holds the final result of a bench run
type Result struct {
	Summary    *Summary
	Thresholds []ThresholdResult
	Passed     bool
}

// HasThresholdFailures returns true if any thresholds failed
func (r *Result) HasThresholdFailures() bool {
	for _, tr := range r.Thresholds {
		if !tr.Passed {
			return true
		}
	}
	return false
}
