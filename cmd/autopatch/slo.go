package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autopatch-io/autopatch/pkg/slo"
)

func newSLOCmd() *cobra.Command {
	var (
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "slo",
		Short: "Show auto-fix SLO summary and run history",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tracker, err := slo.NewTracker(cfg.SLOPath)
			if err != nil {
				return err
			}

			sum, err := tracker.Summarize()
			if err != nil {
				return err
			}
			hist, err := tracker.History(limit)
			if err != nil {
				return err
			}

			if format == "json" {
				data, err := json.MarshalIndent(map[string]any{
					"summary": sum,
					"history": hist,
				}, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("Runs: %d\n", sum.TotalRuns)
			fmt.Printf("Findings processed: %d\n", sum.TotalFindings)
			fmt.Printf("Auto-fixed: %d\n", sum.TotalFixed)
			fmt.Printf("Average SLO: %.1f%%\n", sum.AverageSLO)
			fmt.Printf("Latest SLO: %.1f%%\n\n", sum.LatestSLO)

			for _, rec := range hist {
				fmt.Printf("%s  findings=%d fixable=%d fixed=%d slo=%.1f%%\n",
					rec.Timestamp, rec.TotalFindings, rec.AutoFixable, rec.AutoFixed, rec.SLO())
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Number of recent runs to show")
	cmd.Flags().StringVar(&format, "format", "text", "Output format (text or json)")

	return cmd
}
