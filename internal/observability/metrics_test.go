package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersAll(t *testing.T) {
	m := NewMetrics()
	m.RunsTotal.WithLabelValues("success").Inc()
	m.StageDuration.WithLabelValues("derive").Observe(0.2)
	m.GeocodeRequests.WithLabelValues("success").Inc()
	m.GeocodeCache.WithLabelValues("hit").Inc()

	// Vec collectors only report once a label combination exists.
	n, err := testutil.GatherAndCount(m.registry)
	require.NoError(t, err)
	assert.Equal(t, len(m.collectors()), n)
}

func TestNewMetrics_Independent(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.MaxRate.Set(12.5)
	assert.InDelta(t, 12.5, testutil.ToFloat64(a.MaxRate), 1e-9)
	assert.InDelta(t, 0, testutil.ToFloat64(b.MaxRate), 1e-9)
}

func TestMetrics_Push(t *testing.T) {
	var (
		method, path string
		body         []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMetrics()
	m.TimeSteps.Set(2)

	require.NoError(t, m.Push(context.Background(), srv.URL, "run-1"))
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/rainrate/run_id/run-1", path)
	assert.NotEmpty(t, body)
}

func TestMetrics_PushGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewMetrics().Push(context.Background(), srv.URL, "")
	require.Error(t, err)
}

func TestMetrics_PushUnregistered(t *testing.T) {
	err := NewMetricsForTesting().Push(context.Background(), "http://localhost:9091", "")
	require.Error(t, err)
}
