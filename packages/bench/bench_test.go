package bench

import (
	"bytes"
	"context"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hitwire/packages/adapter"
	"github.com/abdul-hamid-achik/hitwire/packages/http"
)

func quietReporter(buf *bytes.Buffer) *Reporter {
	return NewReporter(WithWriter(buf), WithNoProgress(true), WithNoColor(true))
}

func countingServer(t *testing.T, hits *int64, status int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		atomic.AddInt64(hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"status": "ok"}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewRunner_Validation(t *testing.T) {
	_, err := NewRunner(&Config{Workers: 1}, http.NewRequest("GET", "http://example.com/"))
	assert.ErrorContains(t, err, "invalid config")

	_, err = NewRunner(DefaultConfig(), nil)
	assert.ErrorContains(t, err, "request required")

	_, err = NewRunner(DefaultConfig(), http.NewRequest("GET", "ftp://example.com/"))
	assert.Error(t, err)
}

func TestRunner_RequestCount(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run(strings.Repeat("w", workers), func(t *testing.T) {
			var hits int64
			server := countingServer(t, &hits, stdhttp.StatusOK)

			var buf bytes.Buffer
			runner, err := NewRunner(&Config{Requests: 20, Workers: workers},
				http.NewRequest("GET", server.URL+"/health"),
				WithReporter(quietReporter(&buf)))
			require.NoError(t, err)

			result, err := runner.Run(context.Background())
			require.NoError(t, err)

			assert.Equal(t, int64(20), atomic.LoadInt64(&hits))
			assert.Equal(t, int64(20), result.Summary.TotalRequests)
			assert.Equal(t, int64(20), result.Summary.SuccessCount)
			assert.Equal(t, int64(0), result.Summary.ErrorCount)
			assert.True(t, result.Passed)
			require.Len(t, result.Summary.Outcomes, 1)
			assert.Equal(t, "2xx", result.Summary.Outcomes[0].Name)

			out := buf.String()
			assert.Contains(t, out, "Target: GET "+server.URL+"/health")
			assert.Contains(t, out, "BENCH SUMMARY")
			assert.NotContains(t, out, "\033[K")
		})
	}
}

func TestRunner_ServerErrorsCountAsFailures(t *testing.T) {
	var hits int64
	server := countingServer(t, &hits, stdhttp.StatusInternalServerError)

	var buf bytes.Buffer
	runner, err := NewRunner(&Config{Requests: 5, Workers: 1},
		http.NewRequest("GET", server.URL),
		WithReporter(quietReporter(&buf)))
	require.NoError(t, err)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(5), result.Summary.ErrorCount)
	assert.InDelta(t, 1.0, result.Summary.ErrorRate, 0.001)
	require.Len(t, result.Summary.Outcomes, 1)
	assert.Equal(t, "5xx", result.Summary.Outcomes[0].Name)
}

func TestRunner_TransportErrors(t *testing.T) {
	server := httptest.NewServer(stdhttp.NotFoundHandler())
	url := server.URL
	server.Close()

	var buf bytes.Buffer
	runner, err := NewRunner(&Config{Requests: 3, Workers: 1},
		http.NewRequest("GET", url),
		WithReporter(quietReporter(&buf)))
	require.NoError(t, err)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), result.Summary.TotalRequests)
	assert.Equal(t, int64(3), result.Summary.ErrorCount)
	assert.Equal(t, int64(0), result.Summary.SuccessCount)
}

func TestRunner_DurationMode(t *testing.T) {
	var hits int64
	server := countingServer(t, &hits, stdhttp.StatusOK)

	var buf bytes.Buffer
	runner, err := NewRunner(&Config{Duration: 300 * time.Millisecond, Workers: 2, Rate: 20},
		http.NewRequest("GET", server.URL),
		WithReporter(quietReporter(&buf)))
	require.NoError(t, err)

	start := time.Now()
	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Greater(t, result.Summary.TotalRequests, int64(0))
	assert.LessOrEqual(t, result.Summary.TotalRequests, int64(10), "rate limit caps the run")
	assert.Contains(t, buf.String(), "Rate: 20 req/s")
}

func TestRunner_ContextCancel(t *testing.T) {
	var hits int64
	server := countingServer(t, &hits, stdhttp.StatusOK)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	runner, err := NewRunner(&Config{Requests: 50, Workers: 2},
		http.NewRequest("GET", server.URL),
		WithReporter(quietReporter(&buf)))
	require.NoError(t, err)

	result, err := runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Summary.TotalRequests)
}

func TestRunner_WarmupNotMeasured(t *testing.T) {
	var hits int64
	server := countingServer(t, &hits, stdhttp.StatusOK)

	var buf bytes.Buffer
	runner, err := NewRunner(&Config{Requests: 4, Workers: 2, Warmup: 3},
		http.NewRequest("GET", server.URL),
		WithReporter(quietReporter(&buf)))
	require.NoError(t, err)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(10), atomic.LoadInt64(&hits))
	assert.Equal(t, int64(4), result.Summary.TotalRequests)
	assert.Contains(t, buf.String(), "Warming up")
}

func TestRunner_Thresholds(t *testing.T) {
	var hits int64
	server := countingServer(t, &hits, stdhttp.StatusOK)

	tests := []struct {
		name       string
		thresholds string
		passed     bool
	}{
		{"generous", "p99<10s,errors<1%", true},
		{"impossible rps", "rps>1000000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th, err := ParseThresholds(tt.thresholds)
			require.NoError(t, err)

			var buf bytes.Buffer
			runner, err := NewRunner(&Config{Requests: 5, Workers: 1, Thresholds: th},
				http.NewRequest("GET", server.URL),
				WithReporter(quietReporter(&buf)))
			require.NoError(t, err)

			result, err := runner.Run(context.Background())
			require.NoError(t, err)

			assert.Equal(t, tt.passed, result.Passed)
			assert.Equal(t, !tt.passed, result.HasThresholdFailures())
			assert.Contains(t, buf.String(), "THRESHOLDS")
		})
	}
}

func TestRunner_ClientFactoryPerWorker(t *testing.T) {
	var hits int64
	server := countingServer(t, &hits, stdhttp.StatusOK)

	var built int32
	factory := func() (*http.Client, error) {
		atomic.AddInt32(&built, 1)
		return http.NewClient(http.WithAdapter(adapter.NewLibrary()))
	}

	var buf bytes.Buffer
	runner, err := NewRunner(&Config{Requests: 6, Workers: 3},
		http.NewRequest("GET", server.URL),
		WithReporter(quietReporter(&buf)),
		WithClientFactory(factory))
	require.NoError(t, err)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&built))
	assert.Equal(t, int64(6), result.Summary.SuccessCount)
}

func TestRunner_BodyStreamReusedAcrossSends(t *testing.T) {
	var bodies atomic.Int64
	server := httptest.NewServer(stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(r.Body)
		if buf.String() == "payload" {
			bodies.Add(1)
		}
	}))
	defer server.Close()

	req := http.NewRequest("POST", server.URL)
	req.SetBodyStream(strings.NewReader("payload"))

	var buf bytes.Buffer
	runner, err := NewRunner(&Config{Requests: 3, Workers: 1}, req, WithReporter(quietReporter(&buf)))
	require.NoError(t, err)

	_, err = runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), bodies.Load())
}

func TestReporter_JSONSummary(t *testing.T) {
	m := NewMetrics()
	m.Start()
	m.Record("2xx", 10*time.Millisecond, 1, nil)
	m.Stop()

	var buf bytes.Buffer
	r := quietReporter(&buf)
	require.NoError(t, r.JSONSummary(m.GetSummary(), nil))

	out := buf.String()
	assert.Contains(t, out, `"total": 1`)
	assert.Contains(t, out, `"redirects": 1`)
	assert.Contains(t, out, `"2xx"`)
}

func TestReporter_VerboseOutcomes(t *testing.T) {
	m := NewMetrics()
	m.Start()
	m.Record("2xx", 10*time.Millisecond, 0, nil)
	m.Record("4xx", 10*time.Millisecond, 0, assert.AnError)
	m.Stop()

	var buf bytes.Buffer
	NewReporter(WithWriter(&buf), WithNoColor(true), WithVerbose(true)).Summary(m.GetSummary(), nil)

	out := buf.String()
	assert.Contains(t, out, "OUTCOMES")
	assert.Contains(t, out, "4xx")
	assert.Contains(t, out, "Failed:     1 (50.0%)")
}

func TestReporter_ThresholdVerdicts(t *testing.T) {
	m := NewMetrics()
	m.Start()
	m.Record("2xx", 4*time.Millisecond, 0, nil)
	m.Stop()

	var buf bytes.Buffer
	NewReporter(WithWriter(&buf), WithNoColor(true)).Summary(m.GetSummary(), []ThresholdResult{
		{Name: "p95", Passed: true, Expected: "< 200ms", Actual: "4ms"},
		{Name: "errors", Passed: false, Expected: "< 0.1%", Actual: "5.0%"},
	})

	out := buf.String()
	assert.Contains(t, out, "PASS p95 < 200ms (actual 4ms)")
	assert.Contains(t, out, "FAIL errors < 0.1% (actual 5.0%)")
	assert.Contains(t, out, "1 of 2 thresholds failed")
	assert.Contains(t, out, "Success:    1 (100.0%)")
}
