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

package reporter

import (
	"time"

	"github.com/autopatch-io/autopatch/pkg/helm"
	"github.com/autopatch-io/autopatch/pkg/knowledge"
	"github.com/autopatch-io/autopatch/pkg/plan"
)

// ReleaseRow is one chart release in a scan report.
type ReleaseRow struct {
	Name           string    `json:"name"`
	Chart          string    `json:"chart"`
	Namespace      string    `json:"namespace,omitempty"`
	CurrentVersion string    `json:"current_version"`
	LatestVersion  string    `json:"latest_version"`
	Priority       plan.Tier `json:"priority"`
	SourceFile     string    `json:"source_file,omitempty"`
	MajorSteps     int       `json:"major_steps,omitempty"`
}

// ScanReport summarizes one chart inventory scan.
type ScanReport struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Releases    []ReleaseRow      `json:"releases"`
	Counts      map[plan.Tier]int `json:"counts"`
	Failures    []ScanFailure     `json:"failures,omitempty"`
}

// ScanFailure records a release that could not be classified.
type ScanFailure struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// RoadmapStep is one major hop in a roadmap report, annotated with the
// breaking changes known for that hop.
type RoadmapStep struct {
	Number  int                       `json:"number"`
	From    string                    `json:"from"`
	To      string                    `json:"to"`
	Branch  string                    `json:"branch"`
	Changes []knowledge.BreakingChange `json:"breaking_changes,omitempty"`
}

// RoadmapReport is a multi-major upgrade path for one component.
type RoadmapReport struct {
	Component string        `json:"component"`
	Current   string        `json:"current"`
	Latest    string        `json:"latest"`
	Steps     []RoadmapStep `json:"steps"`
}

// BuildScanReport classifies each release and fills the tier counts.
// Releases that cannot be classified are reported as failures, not dropped
// silently.
func BuildScanReport(releases []helm.Release) ScanReport {
	rep := ScanReport{
		GeneratedAt: time.Now().UTC(),
		Counts:      map[plan.Tier]int{},
	}
	for _, rel := range releases {
		tier, err := rel.Classify()
		if err != nil {
			rep.Failures = append(rep.Failures, ScanFailure{Name: rel.Name, Reason: err.Error()})
			continue
		}
		row := ReleaseRow{
			Name:           rel.Name,
			Chart:          rel.Chart,
			Namespace:      rel.Namespace,
			CurrentVersion: rel.CurrentVersion,
			LatestVersion:  rel.LatestVersion,
			Priority:       tier,
			SourceFile:     rel.SourceFile,
		}
		rep.Releases = append(rep.Releases, row)
		rep.Counts[tier]++
	}
	return rep
}

// BuildRoadmapReport annotates a roadmap with breaking-change knowledge.
func BuildRoadmapReport(r plan.Roadmap, kb *knowledge.Base) RoadmapReport {
	rep := RoadmapReport{
		Component: r.Component,
		Current:   r.Current.String(),
		Latest:    r.Latest.String(),
	}
	for _, s := range r.Steps {
		rep.Steps = append(rep.Steps, RoadmapStep{
			Number:  s.Number,
			From:    s.Current.String(),
			To:      s.Target.String(),
			Branch:  s.Identifier(),
			Changes: kb.ChangesBetween(r.Component, s.Current, s.Target),
		})
	}
	return rep
}
