package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveAdapterCall(t *testing.T) {
	m := New()

	m.ObserveAdapterCall("GVI", "query_by_text", 10*time.Millisecond, nil)
	m.ObserveAdapterCall("GVI", "query_by_text", 10*time.Millisecond, errors.New("timeout"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.adapterCalls.WithLabelValues("GVI", "query_by_text")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.adapterFailures.WithLabelValues("GVI", "query_by_text")))
}

func TestObserveCuration(t *testing.T) {
	m := New()
	m.ObserveCuration("parent", "created")
	m.ObserveCuration("child", "merged")
	m.ObserveCuration("child", "merged")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.curations.WithLabelValues("parent", "created")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.curations.WithLabelValues("child", "merged")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveAdapterCall("SWB", "query_by_text", time.Second, nil)
	m.ObserveRanking("text", time.Second, 3)
	m.ObserveCuration("child", "created")
	m.ObserveHTTP("/resources", "200")
	assert.Nil(t, m.Registry())
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveRanking("text", 5*time.Millisecond, 4)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/__metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "locdb_ranking_duration_seconds")
	assert.Contains(t, string(body), "locdb_ranked_results")
}
