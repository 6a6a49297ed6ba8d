package controller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeReconciler struct {
	snap  Snapshot
	err   error
	calls atomic.Int32
}

func (f *fakeReconciler) Reconcile(ctx context.Context) (Snapshot, error) {
	f.calls.Add(1)
	return f.snap, f.err
}

func TestRunReconcilesImmediately(t *testing.T) {
	rec := &fakeReconciler{snap: Snapshot{OpenFindings: 2, OutdatedCharts: 5, SLO: 40.0}}
	c := New(zap.NewNop(), rec, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = c.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return rec.calls.Load() >= 1 }, time.Second, 10*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, float64(2), testutil.ToFloat64(c.metrics.OpenFindings))
	assert.Equal(t, float64(5), testutil.ToFloat64(c.metrics.OutdatedCharts))
	assert.Equal(t, float64(40), testutil.ToFloat64(c.metrics.SLO))
}

func TestReadyzFlipsAfterFirstReconcile(t *testing.T) {
	rec := &fakeReconciler{}
	c := New(zap.NewNop(), rec, time.Hour)
	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	c.reconcile(context.Background())

	resp, err = http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthzAlwaysOK(t *testing.T) {
	c := New(zap.NewNop(), &fakeReconciler{}, time.Hour)
	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReconcileErrorCountedNotReady(t *testing.T) {
	rec := &fakeReconciler{err: errors.New("boom")}
	c := New(zap.NewNop(), rec, time.Hour)

	c.reconcile(context.Background())

	assert.False(t, c.ready.Load())
	assert.Equal(t, float64(1), testutil.ToFloat64(c.metrics.Reconciles.WithLabelValues("error")))
}

func TestMetricsEndpoint(t *testing.T) {
	c := New(zap.NewNop(), &fakeReconciler{snap: Snapshot{OutdatedCharts: 3}}, time.Hour)
	c.reconcile(context.Background())

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
