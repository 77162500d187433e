package bench

import (
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Latencies are recorded in microseconds between 1us and 60s.
const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
)

// Metrics collects and aggregates latency and outcome counts. It is safe for
// concurrent use by workers.
type Metrics struct {
	mu sync.RWMutex

	totalRequests   atomic.Int64
	successRequests atomic.Int64
	errorRequests   atomic.Int64
	timeoutRequests atomic.Int64
	redirects       atomic.Int64

	histogram *hdrhistogram.Histogram

	// Per-outcome breakdown keyed by status class ("2xx") or error kind
	outcomes map[string]*OutcomeMetrics

	startTime time.Time
	endTime   time.Time

	activeWorkers atomic.Int32
}

// OutcomeMetrics holds metrics for one outcome
type OutcomeMetrics struct {
	Name      string
	Count     atomic.Int64
	Histogram *hdrhistogram.Histogram
	mu        sync.Mutex
}

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(minLatencyUs, maxLatencyUs, 3)
}

func clampLatency(d time.Duration) int64 {
	us := d.Microseconds()
	if us < minLatencyUs {
		return minLatencyUs
	}
	if us > maxLatencyUs {
		return maxLatencyUs
	}
	return us
}

// NewMetrics creates a new Metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		histogram: newHistogram(),
		outcomes:  make(map[string]*OutcomeMetrics),
	}
}

// Start marks the beginning of the measured run
func (m *Metrics) Start() {
	m.startTime = time.Now()
}

// Stop marks the end of the measured run
func (m *Metrics) Stop() {
	m.endTime = time.Now()
}

// Record records one send. A nil err counts as success.
func (m *Metrics) Record(outcome string, duration time.Duration, redirects int, err error) {
	m.totalRequests.Add(1)
	m.redirects.Add(int64(redirects))

	if err != nil {
		m.errorRequests.Add(1)
	} else {
		m.successRequests.Add(1)
	}

	latencyUs := clampLatency(duration)

	m.mu.Lock()
	_ = m.histogram.RecordValue(latencyUs)
	m.mu.Unlock()

	if outcome != "" {
		om := m.outcome(outcome)
		om.Count.Add(1)
		om.mu.Lock()
		_ = om.Histogram.RecordValue(latencyUs)
		om.mu.Unlock()
	}
}

// RecordTimeout records a send that timed out. Timeouts count as errors and
// are kept out of the latency histogram.
func (m *Metrics) RecordTimeout(outcome string) {
	m.totalRequests.Add(1)
	m.timeoutRequests.Add(1)
	m.errorRequests.Add(1)

	if outcome != "" {
		m.outcome(outcome).Count.Add(1)
	}
}

func (m *Metrics) outcome(name string) *OutcomeMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	om, ok := m.outcomes[name]
	if !ok {
		om = &OutcomeMetrics{Name: name, Histogram: newHistogram()}
		m.outcomes[name] = om
	}
	return om
}

// IncrementActiveWorkers increments the active worker count
func (m *Metrics) IncrementActiveWorkers() {
	m.activeWorkers.Add(1)
}

// DecrementActiveWorkers decrements the active worker count
func (m *Metrics) DecrementActiveWorkers() {
	m.activeWorkers.Add(-1)
}

// Summary is the final metrics summary
type Summary struct {
	Duration      time.Duration
	TotalRequests int64
	SuccessCount  int64
	ErrorCount    int64
	TimeoutCount  int64
	Redirects     int64

	RPS         float64
	SuccessRate float64
	ErrorRate   float64

	P50    time.Duration
	P95    time.Duration
	P99    time.Duration
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	StdDev time.Duration

	Outcomes []*OutcomeSummary
}

// OutcomeSummary holds the summary for one outcome
type OutcomeSummary struct {
	Name  string
	Count int64
	P50   time.Duration
	P99   time.Duration
	Mean  time.Duration
}

func quantile(h *hdrhistogram.Histogram, q float64) time.Duration {
	return time.Duration(h.ValueAtQuantile(q)) * time.Microsecond
}

// GetSummary returns the metrics summary
func (m *Metrics) GetSummary() *Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	duration := m.endTime.Sub(m.startTime)
	if m.endTime.IsZero() {
		duration = time.Since(m.startTime)
	}

	total := m.totalRequests.Load()
	success := m.successRequests.Load()
	errors := m.errorRequests.Load()

	rps := float64(0)
	if duration.Seconds() > 0 {
		rps = float64(total) / duration.Seconds()
	}

	successRate := float64(0)
	errorRate := float64(0)
	if total > 0 {
		successRate = float64(success) / float64(total)
		errorRate = float64(errors) / float64(total)
	}

	summary := &Summary{
		Duration:      duration,
		TotalRequests: total,
		SuccessCount:  success,
		ErrorCount:    errors,
		TimeoutCount:  m.timeoutRequests.Load(),
		Redirects:     m.redirects.Load(),
		RPS:           rps,
		SuccessRate:   successRate,
		ErrorRate:     errorRate,
		P50:           quantile(m.histogram, 50),
		P95:           quantile(m.histogram, 95),
		P99:           quantile(m.histogram, 99),
		Min:           time.Duration(m.histogram.Min()) * time.Microsecond,
		Max:           time.Duration(m.histogram.Max()) * time.Microsecond,
		Mean:          time.Duration(m.histogram.Mean()) * time.Microsecond,
		StdDev:        time.Duration(m.histogram.StdDev()) * time.Microsecond,
	}

	for name, om := range m.outcomes {
		om.mu.Lock()
		summary.Outcomes = append(summary.Outcomes, &OutcomeSummary{
			Name:  name,
			Count: om.Count.Load(),
			P50:   quantile(om.Histogram, 50),
			P99:   quantile(om.Histogram, 99),
			Mean:  time.Duration(om.Histogram.Mean()) * time.Microsecond,
		})
		om.mu.Unlock()
	}
	sort.Slice(summary.Outcomes, func(i, j int) bool {
		return summary.Outcomes[i].Name < summary.Outcomes[j].Name
	})

	return summary
}

// CurrentStats is a point-in-time view for progress display
type CurrentStats struct {
	Elapsed       time.Duration
	Total         int64
	Success       int64
	Errors        int64
	RPS           float64
	P50           time.Duration
	P99           time.Duration
	ActiveWorkers int32
}

// GetCurrentStats returns current statistics
func (m *Metrics) GetCurrentStats() CurrentStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	elapsed := time.Since(m.startTime)
	total := m.totalRequests.Load()

	rps := float64(0)
	if elapsed.Seconds() > 0 {
		rps = float64(total) / elapsed.Seconds()
	}

	return CurrentStats{
		Elapsed:       elapsed,
		Total:         total,
		Success:       m.successRequests.Load(),
		Errors:        m.errorRequests.Load(),
		RPS:           rps,
		P50:           quantile(m.histogram, 50),
		P99:           quantile(m.histogram, 99),
		ActiveWorkers: m.activeWorkers.Load(),
	}
}

// EvaluateThresholds evaluates the thresholds against the summary
func (m *Metrics) EvaluateThresholds(t Thresholds) []ThresholdResult {
	summary := m.GetSummary()
	var results []ThresholdResult

	latency := func(name string, limit, actual time.Duration) {
		if limit > 0 {
			results = append(results, ThresholdResult{
				Name:     name,
				Passed:   actual <= limit,
				Expected: "< " + limit.String(),
				Actual:   actual.String(),
			})
		}
	}
	latency("p50", t.P50, summary.P50)
	latency("p95", t.P95, summary.P95)
	latency("p99", t.P99, summary.P99)
	latency("max latency", t.MaxLatency, summary.Max)

	if t.ErrorRate > 0 {
		results = append(results, ThresholdResult{
			Name:     "error rate",
			Passed:   summary.ErrorRate <= t.ErrorRate,
			Expected: formatPercent(t.ErrorRate),
			Actual:   formatPercent(summary.ErrorRate),
		})
	}

	if t.MinRPS > 0 {
		results = append(results, ThresholdResult{
			Name:     "min RPS",
			Passed:   summary.RPS >= t.MinRPS,
			Expected: "> " + formatFloat(t.MinRPS),
			Actual:   formatFloat(summary.RPS),
		})
	}

	return results
}

func formatPercent(f float64) string {
	return formatFloat(f*100) + "%"
}

func formatFloat(f float64) string {
	if f == float64(int(f)) {
		return strconv.Itoa(int(f))
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}
