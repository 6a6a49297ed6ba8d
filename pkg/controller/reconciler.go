package controller

import (
	"context"

	"github.com/autopatch-io/autopatch/pkg/orchestrator"
	"github.com/autopatch-io/autopatch/pkg/plan"
	"github.com/autopatch-io/autopatch/pkg/slo"
)

// Snapshot is what one reconcile observed, fed into the gauges.
type Snapshot struct {
	OpenFindings   int
	OutdatedCharts int
	SLO            float64
}

// Reconciler performs one full pass and reports what it saw.
type Reconciler interface {
	Reconcile(ctx context.Context) (Snapshot, error)
}

// OrchestratorReconciler drives a scan-and-fix run plus a chart planning
// run per reconcile. Either half can be disabled by leaving its source nil.
type OrchestratorReconciler struct {
	Orchestrator *orchestrator.Orchestrator
	Releases     orchestrator.ReleaseSource
	Resolver     orchestrator.ReleaseResolver
	Tracker      *slo.Tracker
	Severities   []string
	// FixEnabled gates the findings half; chart planning runs whenever
	// Releases is set.
	FixEnabled bool
}

// Reconcile runs both halves and merges their observations. A failed half
// fails the reconcile but never blocks the other half from running.
func (r *OrchestratorReconciler) Reconcile(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	var firstErr error

	if r.FixEnabled {
		out, err := r.Orchestrator.FixRun(ctx, r.Severities, false)
		if err != nil {
			firstErr = err
		} else {
			snap.OpenFindings = out.TotalFindings
		}
	}

	if r.Releases != nil {
		out, err := r.Orchestrator.PlanRun(ctx, r.Releases, r.Resolver, true)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if err == nil {
			for tier, n := range out.Report.Counts {
				if tier != plan.TierCurrent {
					snap.OutdatedCharts += n
				}
			}
		}
	}

	if r.Tracker != nil {
		if sum, err := r.Tracker.Summarize(); err == nil && sum.TotalRuns > 0 {
			snap.SLO = sum.LatestSLO
		}
	}

	return snap, firstErr
}
