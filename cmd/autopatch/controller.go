package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/autopatch-io/autopatch/pkg/controller"
	"github.com/autopatch-io/autopatch/pkg/helm"
	"github.com/autopatch-io/autopatch/pkg/orchestrator"
	"github.com/autopatch-io/autopatch/pkg/slo"
)

func newControllerCmd() *cobra.Command {
	var (
		terraformDir string
		argocdDir    string
		cluster      bool
		resolve      bool
		fixEnabled   bool
	)

	cmd := &cobra.Command{
		Use:   "controller",
		Short: "Run the reconcile loop",
		Long: `Run continuous reconciliation: every interval, rescan findings and
chart inventories, recompute the plan, and apply it. Serves /healthz,
/readyz and /metrics on the configured metrics address.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			var (
				orch    *orchestrator.Orchestrator
				tracker *slo.Tracker
			)
			closeOrch := func() error { return nil }
			if fixEnabled {
				orch, tracker, closeOrch, err = newFixOrchestrator(cfg, log)
			} else {
				orch, err = newPlanOrchestrator(cfg, log)
			}
			if err != nil {
				return err
			}
			defer closeOrch()

			rec := &controller.OrchestratorReconciler{
				Orchestrator: orch,
				Tracker:      tracker,
				Severities:   cfg.Severities,
				FixEnabled:   fixEnabled,
			}
			if terraformDir != "" || argocdDir != "" || cluster {
				rec.Releases = buildInventory(terraformDir, argocdDir, cluster)
				if resolve {
					rec.Resolver = helm.NewRepoClient()
				}
			}

			ctrl := controller.New(log, rec, cfg.ReconcileInterval)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return ctrl.Run(gctx) })
			g.Go(func() error { return ctrl.Serve(gctx, cfg.MetricsAddr) })

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	helmFlags(cmd, &terraformDir, &argocdDir, &cluster, &resolve)
	cmd.Flags().BoolVar(&fixEnabled, "fix", false, "Also run scan-and-fix each reconcile")

	return cmd
}
