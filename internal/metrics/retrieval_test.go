package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrievalMetricsCounters(t *testing.T) {
	m := NewRetrievalMetrics()

	m.ObserveSearch("semantic_only", "semantic_no_threshold")
	m.ObserveSearch("filter_only", "")
	m.ObserveSearch("filter_only", "")
	m.ObserveAttempt("semantic_only", "succeeded", 20*time.Millisecond)
	m.ObserveAttempt("semantic_only", "failed", time.Second)
	m.ObserveCorrection("region")
	m.ObserveError("execution_timeout")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.searchesTotal.WithLabelValues("semantic_only", "semantic_no_threshold")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.searchesTotal.WithLabelValues("filter_only", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attemptsTotal.WithLabelValues("semantic_only", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.correctionTotal.WithLabelValues("region")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorsTotal.WithLabelValues("execution_timeout")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.attemptDuration))
}

func TestRetrievalMetricsHandlerExposesSeries(t *testing.T) {
	m := NewRetrievalMetrics()
	m.ObserveSearch("hybrid", "")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `surveysearch_retrieval_searches_total{fallback="none",strategy="hybrid"} 1`))
}
