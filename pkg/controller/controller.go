// Copyright 2025 Autopatch Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

// Package controller runs the reconcile loop: periodically re-derive the
// upgrade plan from current state and apply it. Because every run
// recomputes from scratch, a missed or aborted tick costs nothing.
package controller

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Controller ticks a Reconciler and serves health and metrics endpoints.
type Controller struct {
	log        *zap.Logger
	reconciler Reconciler
	interval   time.Duration
	metrics    *Metrics
	registry   *prometheus.Registry
	ready      atomic.Bool
}

// New builds a Controller with its own prometheus registry.
func New(log *zap.Logger, r Reconciler, interval time.Duration) *Controller {
	registry := prometheus.NewRegistry()
	return &Controller{
		log:        log,
		reconciler: r,
		interval:   interval,
		metrics:    NewMetrics(registry),
		registry:   registry,
	}
}

// Handler serves /healthz, /readyz and /metrics.
func (c *Controller) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !c.ready.Load() {
			http.Error(w, "first reconcile pending", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	return mux
}

// Run reconciles immediately and then on every interval tick until ctx is
// cancelled. Reconcile errors are counted and logged, never fatal.
func (c *Controller) Run(ctx context.Context) error {
	c.log.Info("controller started", zap.Duration("interval", c.interval))

	c.reconcile(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.log.Info("controller stopping")
			return ctx.Err()
		case <-ticker.C:
			c.reconcile(ctx)
		}
	}
}

// Serve runs the health/metrics server until ctx is cancelled.
func (c *Controller) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: c.Handler()}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	c.log.Info("metrics server listening", zap.String("addr", addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		return err
	}
}

func (c *Controller) reconcile(ctx context.Context) {
	start := time.Now()
	snap, err := c.reconciler.Reconcile(ctx)
	if err != nil {
		c.metrics.Reconciles.WithLabelValues("error").Inc()
		c.log.Error("reconcile failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		return
	}

	c.metrics.Reconciles.WithLabelValues("success").Inc()
	c.metrics.OpenFindings.Set(float64(snap.OpenFindings))
	c.metrics.OutdatedCharts.Set(float64(snap.OutdatedCharts))
	c.metrics.SLO.Set(snap.SLO)
	c.metrics.LastReconcile.Set(float64(time.Now().Unix()))
	c.ready.Store(true)

	c.log.Info("reconcile complete",
		zap.Int("open_findings", snap.OpenFindings),
		zap.Int("outdated_charts", snap.OutdatedCharts),
		zap.Float64("slo", snap.SLO),
		zap.Duration("took", time.Since(start)))
}
