package nlu

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/literature-assistant/internal/observability"
)

// promauto registers with the default registry, so the test binary constructs
// its Metrics at most once and every test reads counter deltas.
var (
	metricsOnce sync.Once
	testMetrics *observability.Metrics
)

func sharedMetrics() *observability.Metrics {
	metricsOnce.Do(func() {
		testMetrics = observability.NewMetrics("nlutest")
	})
	return testMetrics
}

func TestOpenAIAnalyzer_CountsRequestsPerAttempt(t *testing.T) {
	m := sharedMetrics()

	var calls atomic.Int32
	server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openAIChatReply(
			`{"is_medical": true, "is_ambiguous": false, "clarifying_question": ""}`,
		))
	})

	analyzer := newOpenAITestAnalyzer(t, server.URL, 1)
	analyzer.metrics = m

	total := m.NLURequestsTotal.WithLabelValues("classify", "gpt-4-turbo")
	failed := m.NLURequestsFailed.WithLabelValues("classify", "gpt-4-turbo")
	totalBefore := testutil.ToFloat64(total)
	failedBefore := testutil.ToFloat64(failed)

	cls, err := analyzer.Classify(context.Background(), "latest treatments for type 2 diabetes")
	require.NoError(t, err)
	require.NotNil(t, cls)

	// One failed attempt plus the successful retry.
	assert.Equal(t, totalBefore+2, testutil.ToFloat64(total))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(failed))
}

func TestOpenAIAnalyzer_CountsExpandRequests(t *testing.T) {
	m := sharedMetrics()

	server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openAIChatReply(
			`{"terms": ["type 2 diabetes mellitus", "t2dm"], "reasoning": "synonyms"}`,
		))
	})

	analyzer := newOpenAITestAnalyzer(t, server.URL, 0)
	analyzer.metrics = m

	total := m.NLURequestsTotal.WithLabelValues("expand", "gpt-4-turbo")
	failed := m.NLURequestsFailed.WithLabelValues("expand", "gpt-4-turbo")
	totalBefore := testutil.ToFloat64(total)
	failedBefore := testutil.ToFloat64(failed)

	exp, err := analyzer.Expand(context.Background(), "type 2 diabetes", 8)
	require.NoError(t, err)
	require.NotNil(t, exp)

	assert.Equal(t, totalBefore+1, testutil.ToFloat64(total))
	assert.Equal(t, failedBefore, testutil.ToFloat64(failed))
}

func TestAnthropicAnalyzer_CountsRequestsPerAttempt(t *testing.T) {
	m := sharedMetrics()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(anthropicReply(
			`{"is_medical": true, "is_ambiguous": false, "clarifying_question": ""}`,
		))
	}))
	t.Cleanup(server.Close)

	analyzer := newAnthropicTestAnalyzer(t, server.URL, 1)
	analyzer.metrics = m

	total := m.NLURequestsTotal.WithLabelValues("classify", "claude-3-sonnet-20240229")
	failed := m.NLURequestsFailed.WithLabelValues("classify", "claude-3-sonnet-20240229")
	totalBefore := testutil.ToFloat64(total)
	failedBefore := testutil.ToFloat64(failed)

	cls, err := analyzer.Classify(context.Background(), "statin safety in elderly patients")
	require.NoError(t, err)
	require.NotNil(t, cls)

	assert.Equal(t, totalBefore+2, testutil.ToFloat64(total))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(failed))
}
