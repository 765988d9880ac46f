package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Note: prometheus/promauto registers metrics globally, so we need to use
// unique namespaces per test to avoid registration conflicts.

func TestNewMetrics(t *testing.T) {
	m := NewMetrics("test_litassist_new")

	assert.NotNil(t, m.SessionsStarted)
	assert.NotNil(t, m.SessionsCompleted)
	assert.NotNil(t, m.SessionsAbandoned)
	assert.NotNil(t, m.TurnsHandled)
	assert.NotNil(t, m.TurnDuration)
	assert.NotNil(t, m.Normalizations)
	assert.NotNil(t, m.SearchesTotal)
	assert.NotNil(t, m.SearchRetries)
	assert.NotNil(t, m.SearchDuration)
	assert.NotNil(t, m.ArticlesPerSearch)
	assert.NotNil(t, m.SynthesesTotal)
	assert.NotNil(t, m.UnparsedRows)
	assert.NotNil(t, m.DeliveriesTotal)
	assert.NotNil(t, m.DeliveryDuration)
	assert.NotNil(t, m.NLURequestsTotal)
	assert.NotNil(t, m.NLURequestsFailed)
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics("test_litassist_counters")

	m.SessionsStarted.Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionsStarted))

	m.TurnsHandled.WithLabelValues("awaiting_query").Inc()
	m.TurnsHandled.WithLabelValues("awaiting_query").Inc()
	assert.Equal(t, float64(2), testutil.ToFloat64(m.TurnsHandled.WithLabelValues("awaiting_query")))

	m.SearchesTotal.WithLabelValues("empty").Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchesTotal.WithLabelValues("empty")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.SearchesTotal.WithLabelValues("results")))

	m.DeliveriesTotal.WithLabelValues("sent").Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DeliveriesTotal.WithLabelValues("sent")))
}

func TestMetrics_Histograms(t *testing.T) {
	m := NewMetrics("test_litassist_histograms")

	m.TurnDuration.Observe(0.25)
	m.TurnDuration.Observe(1.5)

	count, err := histogramSampleCount(m.TurnDuration)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	m.ArticlesPerSearch.Observe(7)
	count, err = histogramSampleCount(m.ArticlesPerSearch)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

// histogramSampleCount extracts the sample count from a histogram metric.
func histogramSampleCount(h prometheus.Histogram) (uint64, error) {
	var metric dto.Metric
	if err := h.(prometheus.Metric).Write(&metric); err != nil {
		return 0, err
	}
	return metric.GetHistogram().GetSampleCount(), nil
}
