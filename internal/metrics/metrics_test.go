package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveRun(t *testing.T) {
	m := New()

	m.ObserveRun("batch", "valid", 20*time.Millisecond)
	m.ObserveRun("batch", "valid", 10*time.Millisecond)
	m.ObserveRun("incremental", "invalid", time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(m.Runs.WithLabelValues("batch", "valid")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("incremental", "invalid")))
	require.Equal(t, 2, testutil.CollectAndCount(m.RunLatency))
}

func TestAddCounters_IgnoreNonPositive(t *testing.T) {
	m := New()

	m.AddReferenceErrors("missing_reference", 3)
	m.AddReferenceErrors("circular_reference", 0)
	m.AddWarnings("unverified_reference", -1)
	m.AddDocuments("envelope", 4)

	require.Equal(t, 3.0, testutil.ToFloat64(m.ReferenceErrors.WithLabelValues("missing_reference")))
	require.Equal(t, 1, testutil.CollectAndCount(m.ReferenceErrors))
	require.Equal(t, 0, testutil.CollectAndCount(m.Warnings))
	require.Equal(t, 4.0, testutil.ToFloat64(m.DocumentsLoaded.WithLabelValues("envelope")))
}

func TestCacheHit(t *testing.T) {
	m := New()

	m.CacheHit(true)
	m.CacheHit(false)
	m.CacheHit(false)

	require.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	require.NotPanics(t, func() {
		m.ObserveRun("batch", "valid", time.Second)
		m.AddReferenceErrors("missing_reference", 1)
		m.AddWarnings("unverified_reference", 1)
		m.AddDocuments("plan", 1)
		m.CacheHit(true)
	})
	require.NoError(t, m.WriteTextfile("/nonexistent/metrics.prom"))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObserveRun("batch", "invalid", 5*time.Millisecond)

	path := filepath.Join(t.TempDir(), "provchain.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `provchain_validation_runs_total{mode="batch",outcome="invalid"} 1`)
	require.Contains(t, string(data), "provchain_validation_duration_seconds_bucket")
}

func TestWriteTextfile_EmptyPath(t *testing.T) {
	require.NoError(t, New().WriteTextfile(""))
}

func TestNew_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.CacheHit(true)

	require.Equal(t, 0, testutil.CollectAndCount(b.CacheLookups))
	require.NotSame(t, a.Registry(), b.Registry())
}
