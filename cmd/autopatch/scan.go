package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/autopatch-io/autopatch/pkg/dojo"
)

func newScanCmd() *cobra.Command {
	var (
		severities []string
		format     string
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List open vulnerability findings",
		Long: `List open findings from the configured DefectDojo instance,
grouped by vulnerable image.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if len(severities) == 0 {
				severities = cfg.Severities
			}

			source, closeSource, err := newFindingsSource(cfg)
			if err != nil {
				return err
			}
			defer closeSource()

			findings, err := source.ListOpen(context.Background(), severities)
			if err != nil {
				return err
			}

			if format == "json" {
				data, err := json.MarshalIndent(findings, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			printFindingsTable(cmd.OutOrStdout(), findings)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&severities, "severity", nil, "Severities to include (default from config)")
	cmd.Flags().StringVar(&format, "format", "table", "Output format (table or json)")

	return cmd
}

func printFindingsTable(w io.Writer, findings []dojo.Finding) {
	if len(findings) == 0 {
		fmt.Fprintln(w, "No open findings.")
		return
	}

	grouped := dojo.GroupByImage(findings)
	images := make([]string, 0, len(grouped))
	for image := range grouped {
		images = append(images, image)
	}
	sort.Strings(images)

	fmt.Fprintf(w, "%d open finding(s) across %d image(s)\n\n", len(findings), len(grouped))
	for _, image := range images {
		fmt.Fprintf(w, "%s (%d finding(s)):\n", image, len(grouped[image]))
		for _, f := range grouped[image] {
			fmt.Fprintf(w, "  [%s] #%d %s\n", f.Severity, f.ID, f.Title)
		}
		fmt.Fprintln(w)
	}
}
