package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autopatch-io/autopatch/pkg/orchestrator"
)

func newFixCmd() *cobra.Command {
	var (
		dryRun     bool
		severities []string
	)

	cmd := &cobra.Command{
		Use:   "fix",
		Short: "Scan findings and open fix change requests",
		Long: `Scan open findings, suggest a safe target version per vulnerable
image, and open one change request per suggestion. With --dry-run the
suggestions are printed and nothing is written.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if len(severities) == 0 {
				severities = cfg.Severities
			}

			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			orch, _, closeOrch, err := newFixOrchestrator(cfg, log)
			if err != nil {
				return err
			}
			defer closeOrch()

			out, err := orch.FixRun(context.Background(), severities, dryRun)
			if err != nil {
				return err
			}
			printFixOutcome(out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Suggest fixes without creating change requests")
	cmd.Flags().StringSliceVar(&severities, "severity", nil, "Severities to act on (default from config)")

	return cmd
}

func printFixOutcome(out *orchestrator.FixOutcome) {
	fmt.Printf("Findings: %d total, %d auto-fixable\n\n", out.TotalFindings, out.AutoFixable)

	for _, sug := range out.Suggestions {
		fmt.Printf("  %s: %s -> %s (%s confidence)\n",
			sug.Component, sug.Current.Raw, sug.Target.Raw, sug.Confidence)
	}
	for _, u := range out.Unfixable {
		fmt.Printf("  %s: not auto-fixable (%s)\n", u.Component, u.Reason)
	}

	if out.DryRun {
		fmt.Println("\nDry run: no change requests created.")
		return
	}
	fmt.Printf("\n%d change request(s) created:\n", len(out.Requests))
	for _, h := range out.Requests {
		fmt.Printf("  %s  %s\n", h.Branch, h.URL)
	}
}
