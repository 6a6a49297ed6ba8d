package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autopatch-io/autopatch/pkg/helm"
	"github.com/autopatch-io/autopatch/pkg/orchestrator"
	"github.com/autopatch-io/autopatch/pkg/plan"
	"github.com/autopatch-io/autopatch/pkg/reporter"
	"github.com/autopatch-io/autopatch/pkg/version"
)

func newHelmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "helm",
		Short: "Chart release scanning and upgrade planning",
	}
	cmd.AddCommand(newHelmScanCmd(), newHelmRoadmapCmd(), newHelmPlanCmd())
	return cmd
}

func helmFlags(cmd *cobra.Command, terraformDir, argocdDir *string, cluster, resolve *bool) {
	cmd.Flags().StringVar(terraformDir, "terraform-dir", "", "Directory of Terraform helm_release declarations")
	cmd.Flags().StringVar(argocdDir, "argocd-dir", "", "Directory of ArgoCD Application manifests")
	cmd.Flags().BoolVar(cluster, "cluster", false, "Include releases from the live cluster (helm list)")
	cmd.Flags().BoolVar(resolve, "resolve", true, "Resolve latest versions via helm search repo")
}

func buildInventory(terraformDir, argocdDir string, cluster bool) helm.Inventory {
	inv := helm.Inventory{TerraformDir: terraformDir, ArgoCDDir: argocdDir}
	if cluster {
		inv.Cluster = helm.NewRepoClient()
	}
	return inv
}

func newHelmScanCmd() *cobra.Command {
	var (
		terraformDir string
		argocdDir    string
		cluster      bool
		resolve      bool
		format       string
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan chart releases and report upgrade priorities",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			inv := buildInventory(terraformDir, argocdDir, cluster)
			releases, err := inv.List(ctx)
			if err != nil {
				return err
			}

			if resolve {
				repo := helm.NewRepoClient()
				for i := range releases {
					if releases[i].LatestVersion != "" {
						continue
					}
					if err := repo.Resolve(ctx, &releases[i]); err != nil {
						fmt.Printf("warning: %s: %v\n", releases[i].Name, err)
					}
				}
			}

			rep := reporter.BuildScanReport(releases)
			out, err := reporter.NewReporter(reporter.ReportFormat(format)).GenerateScanReport(&rep)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}

	helmFlags(cmd, &terraformDir, &argocdDir, &cluster, &resolve)
	cmd.Flags().StringVar(&format, "format", "text", "Output format (text, markdown or json)")

	return cmd
}

func newHelmRoadmapCmd() *cobra.Command {
	var (
		current string
		latest  string
		format  string
	)

	cmd := &cobra.Command{
		Use:   "roadmap <chart>",
		Short: "Print the step-by-step upgrade path for a chart",
		Long: `Print the ordered major-by-major upgrade path for a chart, annotated
with known breaking changes per step. Latest and known versions come from
the chart repository when --latest is not given, falling back to the
built-in knowledge base.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chart := args[0]
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			kb, err := loadKnowledge(cfg)
			if err != nil {
				return err
			}

			cur, err := version.Parse(current)
			if err != nil {
				return fmt.Errorf("--current: %w", err)
			}

			known := kb.KnownReleases(chart)
			if latest == "" {
				if len(known) == 0 {
					return fmt.Errorf("no release history for %q; pass --latest", chart)
				}
				latest = known[len(known)-1].Raw
			}
			lat, err := version.Parse(latest)
			if err != nil {
				return fmt.Errorf("--latest: %w", err)
			}

			roadmap, err := plan.BuildRoadmap(chart, cur, lat, known)
			if err != nil {
				return err
			}

			rep := reporter.BuildRoadmapReport(roadmap, kb)
			out, err := reporter.NewReporter(reporter.ReportFormat(format)).GenerateRoadmapReport(&rep)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&current, "current", "", "Installed chart version (required)")
	cmd.Flags().StringVar(&latest, "latest", "", "Target version (default: newest known release)")
	cmd.Flags().StringVar(&format, "format", "text", "Output format (text, markdown or json)")
	cmd.MarkFlagRequired("current")

	return cmd
}

func newHelmPlanCmd() *cobra.Command {
	var (
		terraformDir string
		argocdDir    string
		cluster      bool
		resolve      bool
		apply        bool
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan chart upgrades and optionally open change requests",
		Long: `Scan the chart inventory, batch single-major upgrades by priority
tier, and walk multi-major releases one gated step at a time. With --apply
the resulting change requests are created; without it the plan is printed.`,
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

			orch, err := newPlanOrchestrator(cfg, log)
			if err != nil {
				return err
			}

			inv := buildInventory(terraformDir, argocdDir, cluster)
			var resolver orchestrator.ReleaseResolver
			if resolve {
				resolver = helm.NewRepoClient()
			}

			out, err := orch.PlanRun(context.Background(), inv, resolver, apply)
			if err != nil {
				return err
			}
			printPlanOutcome(out)
			return nil
		},
	}

	helmFlags(cmd, &terraformDir, &argocdDir, &cluster, &resolve)
	cmd.Flags().BoolVar(&apply, "apply", false, "Create the planned change requests")

	return cmd
}

func printPlanOutcome(out *orchestrator.PlanOutcome) {
	for _, tier := range []plan.Tier{plan.TierCritical, plan.TierMajor, plan.TierMinor} {
		batch, ok := out.Batches[tier]
		if !ok {
			continue
		}
		fmt.Printf("Batch %s (%d chart(s)):\n", batch.Name, len(batch.Candidates))
		for _, c := range batch.Candidates {
			fmt.Printf("  %s: %s -> %s\n", c.Component, c.Current.Raw, c.Target.Raw)
		}
		fmt.Println()
	}

	for _, rs := range out.Rollouts {
		switch rs.Action.Kind {
		case plan.ActionCreateStep:
			step := rs.Roadmap.Steps[rs.Action.Step-1]
			fmt.Printf("Rollout %s: next step %d/%d, %s -> %s (%s)\n",
				rs.Component, rs.Action.Step, len(rs.Roadmap.Steps),
				step.Current.Raw, step.Target.Raw, rs.Action.Branch)
		case plan.ActionWaitForMerge:
			fmt.Printf("Rollout %s: waiting for %s to merge\n", rs.Component, rs.Action.Branch)
		case plan.ActionComplete:
			fmt.Printf("Rollout %s: complete\n", rs.Component)
		}
	}

	for _, f := range out.Failures {
		fmt.Printf("Skipped %s: %s\n", f.Name, f.Reason)
	}

	if out.Apply {
		fmt.Printf("\n%d change request(s) created:\n", len(out.Requests))
		for _, h := range out.Requests {
			fmt.Printf("  %s  %s\n", h.Branch, h.URL)
		}
	} else {
		fmt.Println("\nPlan only: re-run with --apply to create change requests.")
	}
}
