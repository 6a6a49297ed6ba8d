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

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/autopatch-io/autopatch/pkg/gitops"
	"github.com/autopatch-io/autopatch/pkg/helm"
	"github.com/autopatch-io/autopatch/pkg/plan"
	"github.com/autopatch-io/autopatch/pkg/reporter"
	"github.com/autopatch-io/autopatch/pkg/version"
)

// stepBranchPrefix namespaces per-step rollout branches; batchBranchPrefix
// namespaces tier batch branches. Both double as ListOpen filters.
const (
	stepBranchPrefix  = "upgrade/"
	batchBranchPrefix = "autopatch/batch-"
)

// RolloutStatus is the gate's decision for one multi-step component.
type RolloutStatus struct {
	Component string
	Roadmap   plan.Roadmap
	Action    plan.Action
}

// PlanOutcome summarizes one chart planning run.
type PlanOutcome struct {
	Report reporter.ScanReport
	// Rollouts holds per-component staged-rollout decisions for releases
	// more than one major behind.
	Rollouts []RolloutStatus
	// Batches holds the single-step upgrades grouped by tier.
	Batches map[plan.Tier]plan.Batch
	// Skipped lists branches that already had an open change request.
	Skipped  []string
	Requests []gitops.Handle
	Failures []reporter.ScanFailure
	Apply    bool
}

// PlanRun scans the chart inventory, decides the next action per release,
// and with apply set opens the change requests those decisions call for.
// Releases a single major or less behind are grouped into one batch per
// tier; releases further behind get one request per major hop, gated on the
// previous hop's request having merged.
func (o *Orchestrator) PlanRun(ctx context.Context, src ReleaseSource, resolver ReleaseResolver, apply bool) (*PlanOutcome, error) {
	releases, err := src.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: list releases: %w", err)
	}

	for i := range releases {
		if resolver == nil || releases[i].LatestVersion != "" {
			continue
		}
		if err := resolver.Resolve(ctx, &releases[i]); err != nil {
			o.log.Warn("latest version lookup failed",
				zap.String("release", releases[i].Name),
				zap.Error(err))
		}
	}

	outcome := &PlanOutcome{
		Report: reporter.BuildScanReport(releases),
		Apply:  apply,
	}
	outcome.Failures = outcome.Report.Failures

	openSteps, err := o.openSet(ctx, stepBranchPrefix)
	if err != nil {
		return nil, err
	}
	openBatchBranches, err := o.openSet(ctx, batchBranchPrefix)
	if err != nil {
		return nil, err
	}

	var candidates []plan.Candidate
	for _, rel := range releases {
		tier, err := rel.Classify()
		if err != nil || tier == plan.TierCurrent {
			continue
		}
		current, err := version.Parse(rel.CurrentVersion)
		if err != nil {
			continue
		}
		latest, err := version.Parse(rel.LatestVersion)
		if err != nil {
			continue
		}

		known := o.knownReleases(rel)
		roadmap, err := plan.BuildRoadmap(rel.Chart, current, latest, known)
		if err != nil {
			o.log.Error("roadmap failed",
				zap.String("release", rel.Name),
				zap.String("chart", rel.Chart),
				zap.Error(err))
			outcome.Failures = append(outcome.Failures, reporter.ScanFailure{
				Name: rel.Name, Reason: err.Error(),
			})
			continue
		}

		if len(roadmap.Steps) == 1 {
			candidates = append(candidates, plan.Candidate{
				Component: rel.Chart,
				Current:   current,
				Target:    latest,
				Tier:      tier,
			})
			continue
		}

		action := plan.NextAction(roadmap, current, openSteps)
		outcome.Rollouts = append(outcome.Rollouts, RolloutStatus{
			Component: rel.Chart,
			Roadmap:   roadmap,
			Action:    action,
		})
	}

	openBatches := plan.OpenBatches{}
	for _, tier := range []plan.Tier{plan.TierCritical, plan.TierMajor, plan.TierMinor} {
		if !openBatchBranches.Contains(plan.BatchName(tier)) {
			continue
		}
		covered := make(map[string]struct{})
		for _, c := range candidates {
			if c.Tier == tier {
				covered[c.Component] = struct{}{}
			}
		}
		openBatches[tier] = covered
	}
	outcome.Batches = plan.PlanBatches(candidates, openBatches)

	o.applyRollouts(ctx, outcome, apply)
	o.applyBatches(ctx, outcome, openBatchBranches, apply)
	return outcome, nil
}

func (o *Orchestrator) openSet(ctx context.Context, prefix string) (plan.OpenSet, error) {
	branches, err := o.requests.ListOpen(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: list open requests %q: %w", prefix, err)
	}
	return plan.NewOpenSet(branches...), nil
}

func (o *Orchestrator) knownReleases(rel helm.Release) []version.Version {
	known := rel.Known()
	if o.kb != nil {
		known = append(known, o.kb.KnownReleases(rel.Chart)...)
	}
	return known
}

func (o *Orchestrator) applyRollouts(ctx context.Context, outcome *PlanOutcome, apply bool) {
	for _, rs := range outcome.Rollouts {
		switch rs.Action.Kind {
		case plan.ActionWaitForMerge:
			o.log.Info("duplicate request skipped, waiting for merge",
				zap.String("component", rs.Component),
				zap.String("branch", rs.Action.Branch),
				zap.Int("step", rs.Action.Step))
			outcome.Skipped = append(outcome.Skipped, rs.Action.Branch)
		case plan.ActionCreateStep:
			if !apply {
				continue
			}
			step := rs.Roadmap.Steps[rs.Action.Step-1]
			handle, err := o.requests.Create(ctx, stepChangeRequest(rs, step))
			if err != nil {
				o.logCreateFailure(rs.Component, rs.Action.Branch, err)
				continue
			}
			outcome.Requests = append(outcome.Requests, handle)
		case plan.ActionComplete:
			o.log.Info("rollout complete", zap.String("component", rs.Component))
		}
	}
}

func (o *Orchestrator) applyBatches(ctx context.Context, outcome *PlanOutcome, openBatchBranches plan.OpenSet, apply bool) {
	for _, tier := range []plan.Tier{plan.TierCritical, plan.TierMajor, plan.TierMinor} {
		batch, ok := outcome.Batches[tier]
		if !ok || len(batch.Candidates) == 0 {
			continue
		}
		if openBatchBranches.Contains(batch.Name) {
			// Unreachable unless a batch branch opened mid-run; the
			// planner already drops covered components.
			o.log.Info("duplicate request skipped", zap.String("branch", batch.Name))
			outcome.Skipped = append(outcome.Skipped, batch.Name)
			continue
		}
		if !apply {
			continue
		}
		handle, err := o.requests.Create(ctx, batchChangeRequest(batch))
		if err != nil {
			o.logCreateFailure(string(tier), batch.Name, err)
			continue
		}
		outcome.Requests = append(outcome.Requests, handle)
	}
}

func (o *Orchestrator) logCreateFailure(subject, branch string, err error) {
	if errors.Is(err, gitops.ErrNoManifestChanges) {
		o.log.Info("no manifests to change, skipping",
			zap.String("subject", subject),
			zap.String("branch", branch))
		return
	}
	o.log.Error("change request failed",
		zap.String("subject", subject),
		zap.String("branch", branch),
		zap.Error(err))
}

func stepChangeRequest(rs RolloutStatus, step plan.Step) gitops.ChangeRequest {
	var body strings.Builder
	body.WriteString(fmt.Sprintf("Step %d of %d on the `%s` upgrade path (`%s` -> `%s`).\n\n",
		step.Number, len(rs.Roadmap.Steps), rs.Component,
		rs.Roadmap.Current.String(), rs.Roadmap.Latest.String()))
	body.WriteString(fmt.Sprintf("This step upgrades `%s` -> `%s`. The next step is opened once this one merges.\n",
		step.Current.String(), step.Target.String()))

	return gitops.ChangeRequest{
		Branch: step.Identifier(),
		Title: fmt.Sprintf("upgrade: %s to %s (step %d/%d)",
			rs.Component, step.Target.String(), step.Number, len(rs.Roadmap.Steps)),
		Body: body.String(),
		ChartEdits: []gitops.ChartEdit{{
			Chart:      rs.Component,
			OldVersion: step.Current.Raw,
			NewVersion: step.Target.Raw,
		}},
	}
}

func batchChangeRequest(batch plan.Batch) gitops.ChangeRequest {
	var body strings.Builder
	body.WriteString(fmt.Sprintf("Batched `%s` priority chart upgrades:\n\n", batch.Tier))
	edits := make([]gitops.ChartEdit, 0, len(batch.Candidates))
	for _, c := range batch.Candidates {
		body.WriteString(fmt.Sprintf("- `%s`: `%s` -> `%s`\n", c.Component, c.Current.Raw, c.Target.Raw))
		edits = append(edits, gitops.ChartEdit{
			Chart:      c.Component,
			OldVersion: c.Current.Raw,
			NewVersion: c.Target.Raw,
		})
	}

	return gitops.ChangeRequest{
		Branch:     batch.Name,
		Title:      fmt.Sprintf("upgrade: %s priority chart batch (%d charts)", batch.Tier, len(batch.Candidates)),
		Body:       body.String(),
		ChartEdits: edits,
	}
}
