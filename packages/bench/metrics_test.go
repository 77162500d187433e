package bench

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()
	m.Start()

	m.Record("2xx", 100*time.Millisecond, 0, nil)
	m.Record("2xx", 150*time.Millisecond, 2, nil)
	m.Record("5xx", 200*time.Millisecond, 0, errors.New("HTTP 500"))
	m.Stop()

	stats := m.GetCurrentStats()
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.Success)
	assert.Equal(t, int64(1), stats.Errors)

	summary := m.GetSummary()
	assert.Equal(t, int64(2), summary.Redirects)
}

func TestMetricsRecordTimeout(t *testing.T) {
	m := NewMetrics()
	m.Start()

	m.Record("2xx", 100*time.Millisecond, 0, nil)
	m.RecordTimeout("timeout")
	m.Stop()

	summary := m.GetSummary()
	assert.Equal(t, int64(2), summary.TotalRequests)
	assert.Equal(t, int64(1), summary.TimeoutCount)
	assert.Equal(t, int64(1), summary.ErrorCount)
	assert.Equal(t, 100*time.Millisecond, summary.Max.Round(time.Millisecond), "timeouts stay out of the histogram")
}

func TestMetricsActiveWorkers(t *testing.T) {
	m := NewMetrics()

	m.IncrementActiveWorkers()
	m.IncrementActiveWorkers()
	assert.Equal(t, int32(2), m.GetCurrentStats().ActiveWorkers)

	m.DecrementActiveWorkers()
	assert.Equal(t, int32(1), m.GetCurrentStats().ActiveWorkers)
}

func TestMetricsSummary(t *testing.T) {
	m := NewMetrics()
	m.Start()

	for i := 0; i < 100; i++ {
		m.Record("2xx", time.Duration(i+1)*time.Millisecond, 0, nil)
	}

	m.Stop()

	summary := m.GetSummary()
	assert.Equal(t, int64(100), summary.TotalRequests)
	assert.Equal(t, int64(100), summary.SuccessCount)
	assert.Equal(t, int64(0), summary.ErrorCount)
	assert.InDelta(t, 1.0, summary.SuccessRate, 0.001)
	assert.InDelta(t, 0.0, summary.ErrorRate, 0.001)

	assert.True(t, summary.P50 > 0)
	assert.True(t, summary.P95 > summary.P50)
	assert.True(t, summary.P99 >= summary.P95)
	assert.True(t, summary.Max >= summary.P99)
	assert.True(t, summary.Min > 0)
}

func TestMetricsOutcomeBreakdown(t *testing.T) {
	m := NewMetrics()
	m.Start()

	m.Record("2xx", 100*time.Millisecond, 0, nil)
	m.Record("2xx", 110*time.Millisecond, 0, nil)
	m.Record("4xx", 50*time.Millisecond, 0, errors.New("HTTP 404"))
	m.RecordTimeout("timeout")

	m.Stop()

	summary := m.GetSummary()
	require.Len(t, summary.Outcomes, 3)
	assert.Equal(t, "2xx", summary.Outcomes[0].Name)
	assert.Equal(t, int64(2), summary.Outcomes[0].Count)
	assert.Equal(t, "4xx", summary.Outcomes[1].Name)
	assert.Equal(t, int64(1), summary.Outcomes[1].Count)
	assert.Equal(t, "timeout", summary.Outcomes[2].Name)
	assert.Equal(t, int64(1), summary.Outcomes[2].Count)
}

func TestMetricsEvaluateThresholds(t *testing.T) {
	m := NewMetrics()
	m.Start()

	for i := 0; i < 100; i++ {
		m.Record("2xx", 10*time.Millisecond, 0, nil)
	}
	m.Record("5xx", 10*time.Millisecond, 0, errors.New("HTTP 500"))

	m.Stop()

	results := m.EvaluateThresholds(Thresholds{
		P95:       100 * time.Millisecond,
		ErrorRate: 0.05,
	})
	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, r.Passed, "threshold %s should pass", r.Name)
	}

	results = m.EvaluateThresholds(Thresholds{
		P95:       1 * time.Millisecond,
		ErrorRate: 0.001,
	})
	require.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.Passed, "threshold %s should fail", r.Name)
	}
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "999", formatNumber(999))
	assert.Equal(t, "1,000", formatNumber(1000))
	assert.Equal(t, "1,234,567", formatNumber(1234567))
}
