package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/autopatch-io/autopatch/pkg/helm"
	"github.com/autopatch-io/autopatch/pkg/web"
)

func newServeCmd() *cobra.Command {
	var (
		terraformDir string
		argocdDir    string
		cluster      bool
		resolve      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Long: `Serve the dashboard API: SLO summary and history, the latest chart
scan report, and manual run triggers.`,
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

			orch, tracker, closeOrch, err := newFixOrchestrator(cfg, log)
			if err != nil {
				return err
			}
			defer closeOrch()

			opts := web.Options{
				Log:     log,
				Orch:    orch,
				Tracker: tracker,
			}
			if terraformDir != "" || argocdDir != "" || cluster {
				opts.Releases = buildInventory(terraformDir, argocdDir, cluster)
				if resolve {
					opts.Resolver = helm.NewRepoClient()
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := web.NewServer(opts).Serve(ctx, cfg.ListenAddr); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	helmFlags(cmd, &terraformDir, &argocdDir, &cluster, &resolve)

	return cmd
}
