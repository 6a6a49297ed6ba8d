package controller

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the controller's prometheus instruments.
type Metrics struct {
	Reconciles     *prometheus.CounterVec
	OpenFindings   prometheus.Gauge
	OutdatedCharts prometheus.Gauge
	SLO            prometheus.Gauge
	LastReconcile  prometheus.Gauge
}

// NewMetrics registers the controller's instruments with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Reconciles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autopatch",
			Name:      "reconciles_total",
			Help:      "Reconcile loop iterations, by result.",
		}, []string{"result"}),
		OpenFindings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "autopatch",
			Name:      "open_findings",
			Help:      "Open vulnerability findings seen by the last reconcile.",
		}),
		OutdatedCharts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "autopatch",
			Name:      "outdated_charts",
			Help:      "Chart releases behind their latest version.",
		}),
		SLO: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "autopatch",
			Name:      "slo_percent",
			Help:      "Latest run's auto-fix SLO percentage.",
		}),
		LastReconcile: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "autopatch",
			Name:      "last_reconcile_timestamp_seconds",
			Help:      "Unix time of the last completed reconcile.",
		}),
	}
	reg.MustRegister(m.Reconciles, m.OpenFindings, m.OutdatedCharts, m.SLO, m.LastReconcile)
	return m
}
