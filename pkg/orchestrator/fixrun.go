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
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/autopatch-io/autopatch/pkg/dojo"
	"github.com/autopatch-io/autopatch/pkg/fix"
	"github.com/autopatch-io/autopatch/pkg/gitops"
)

// Unfixable is a component no fix could be suggested for. It stays in the
// run outcome so the operator sees it rather than losing it to a log line.
type Unfixable struct {
	Component string
	Installed string
	Findings  int
	Reason    string
}

// FixOutcome summarizes one scan-and-fix run.
type FixOutcome struct {
	TotalFindings int
	AutoFixable   int
	AutoFixed     int
	Suggestions   []fix.Suggestion
	Unfixable     []Unfixable
	Requests      []gitops.Handle
	DryRun        bool
}

// FixRun lists open findings, suggests a fix per vulnerable image, and
// opens one change request per suggestion. With dryRun set it stops after
// suggesting: nothing is written, no run record is appended.
func (o *Orchestrator) FixRun(ctx context.Context, severities []string, dryRun bool) (*FixOutcome, error) {
	findings, err := o.findings.ListOpen(ctx, severities)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: list findings: %w", err)
	}

	groups := dojo.GroupByImage(findings)
	images := make([]string, 0, len(groups))
	for img := range groups {
		images = append(images, img)
	}
	sort.Strings(images)

	outcome := &FixOutcome{TotalFindings: len(findings), DryRun: dryRun}

	type pending struct {
		sug   fix.Suggestion
		group []dojo.Finding
	}
	var fixable []pending
	for _, img := range images {
		group := groups[img]
		name, installed := group[0].ComponentName, group[0].ComponentVersion
		if name == "" {
			outcome.Unfixable = append(outcome.Unfixable, Unfixable{
				Component: img, Findings: len(group), Reason: "finding has no component name",
			})
			continue
		}
		sug, err := o.resolver.Suggest(name, installed)
		if err != nil {
			o.log.Warn("no fix suggested",
				zap.String("component", name),
				zap.String("installed", installed),
				zap.Error(err))
			outcome.Unfixable = append(outcome.Unfixable, Unfixable{
				Component: name, Installed: installed, Findings: len(group), Reason: err.Error(),
			})
			continue
		}
		outcome.Suggestions = append(outcome.Suggestions, sug)
		outcome.AutoFixable += len(group)
		fixable = append(fixable, pending{sug: sug, group: group})
	}

	if dryRun {
		return outcome, nil
	}

	if o.tracker != nil {
		if _, err := o.tracker.StartRun(outcome.TotalFindings, outcome.AutoFixable); err != nil {
			return nil, fmt.Errorf("orchestrator: start run record: %w", err)
		}
	}

	for _, p := range fixable {
		handle, err := o.requests.Create(ctx, fixChangeRequest(o.requests.NewFixBranch(), p.sug, p.group))
		if err != nil {
			if errors.Is(err, gitops.ErrNoManifestChanges) {
				o.log.Info("no manifests reference image, skipping",
					zap.String("component", p.sug.Component))
				continue
			}
			o.log.Error("change request failed",
				zap.String("component", p.sug.Component),
				zap.Error(err))
			continue
		}
		outcome.Requests = append(outcome.Requests, handle)
		outcome.AutoFixed += len(p.group)

		if o.tracker != nil {
			url := handle.URL
			for range p.group {
				if err := o.tracker.RecordFix(url); err != nil {
					o.log.Error("record fix failed", zap.Error(err))
					break
				}
				// The request URL is recorded once per change request.
				url = ""
			}
		}
	}

	if o.tracker != nil {
		if _, err := o.tracker.CompleteRun(); err != nil {
			return nil, fmt.Errorf("orchestrator: complete run record: %w", err)
		}
	}
	return outcome, nil
}

func fixChangeRequest(branch string, sug fix.Suggestion, group []dojo.Finding) gitops.ChangeRequest {
	var body strings.Builder
	body.WriteString(fmt.Sprintf("Bumps `%s` from `%s` to `%s` (%s confidence: %s).\n\n",
		sug.Component, sug.Current.Raw, sug.Target.Raw, sug.Confidence, sug.Reason))
	body.WriteString("Addresses the following open findings:\n\n")
	for _, f := range group {
		body.WriteString(fmt.Sprintf("- [%s] #%d %s\n", f.Severity, f.ID, f.Title))
	}

	return gitops.ChangeRequest{
		Branch: branch,
		Title:  fmt.Sprintf("fix: bump %s from %s to %s", sug.Component, sug.Current.Raw, sug.Target.Raw),
		Body:   body.String(),
		Edits:  []gitops.Edit{{OldRef: sug.CurrentRef(), NewRef: sug.TargetRef()}},
	}
}
