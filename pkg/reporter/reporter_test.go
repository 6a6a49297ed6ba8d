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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopatch-io/autopatch/pkg/helm"
	"github.com/autopatch-io/autopatch/pkg/knowledge"
	"github.com/autopatch-io/autopatch/pkg/plan"
	"github.com/autopatch-io/autopatch/pkg/version"
)

func testReleases() []helm.Release {
	return []helm.Release{
		{Name: "velero", Chart: "velero", CurrentVersion: "5.0.2", LatestVersion: "9.1.2", SourceFile: "velero.tf"},
		{Name: "grafana", Chart: "grafana", CurrentVersion: "7.0.0", LatestVersion: "7.3.1"},
		{Name: "metrics-server", Chart: "metrics-server", CurrentVersion: "3.12.1", LatestVersion: "3.12.1"},
		{Name: "broken", Chart: "broken", CurrentVersion: "not-a-version", LatestVersion: "1.0.0"},
	}
}

func TestBuildScanReport(t *testing.T) {
	rep := BuildScanReport(testReleases())

	require.Len(t, rep.Releases, 3)
	assert.Equal(t, 1, rep.Counts[plan.TierCritical])
	assert.Equal(t, 1, rep.Counts[plan.TierMinor])
	assert.Equal(t, 1, rep.Counts[plan.TierCurrent])

	require.Len(t, rep.Failures, 1)
	assert.Equal(t, "broken", rep.Failures[0].Name)
}

func TestScanReportJSON(t *testing.T) {
	rep := BuildScanReport(testReleases())
	out, err := NewReporter(JSONFormat).GenerateScanReport(&rep)
	require.NoError(t, err)

	var decoded ScanReport
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Len(t, decoded.Releases, 3)
}

func TestScanReportText(t *testing.T) {
	rep := BuildScanReport(testReleases())
	out, err := NewReporter(TextFormat).GenerateScanReport(&rep)
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, "CHART VERSION SCAN REPORT")
	assert.Contains(t, s, "velero")
	assert.Contains(t, s, "5.0.2 -> 9.1.2")
	assert.Contains(t, s, "UNCLASSIFIED RELEASES")
}

func TestScanReportMarkdown(t *testing.T) {
	rep := BuildScanReport(testReleases())
	out, err := NewReporter(MarkdownFormat).GenerateScanReport(&rep)
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, "# Chart Version Scan Report")
	assert.Contains(t, s, "| velero | velero | 5.0.2 | 9.1.2 | critical |")
}

func TestUnsupportedFormat(t *testing.T) {
	rep := BuildScanReport(nil)
	_, err := NewReporter("xml").GenerateScanReport(&rep)
	assert.Error(t, err)
}

func TestRoadmapReport(t *testing.T) {
	kb, err := knowledge.Default()
	require.NoError(t, err)

	roadmap, err := plan.BuildRoadmap("velero",
		version.MustParse("5.0.2"),
		version.MustParse("9.1.2"),
		kb.KnownReleases("velero"))
	require.NoError(t, err)

	rep := BuildRoadmapReport(roadmap, kb)
	assert.Equal(t, "velero", rep.Component)
	require.NotEmpty(t, rep.Steps)
	assert.Equal(t, "upgrade/velero/major-6", rep.Steps[0].Branch)

	out, err := NewReporter(MarkdownFormat).GenerateRoadmapReport(&rep)
	require.NoError(t, err)
	assert.Contains(t, string(out), "# Upgrade Roadmap: velero")

	text, err := NewReporter(TextFormat).GenerateRoadmapReport(&rep)
	require.NoError(t, err)
	assert.Contains(t, string(text), "UPGRADE ROADMAP")
}

func TestRoadmapReportNoSteps(t *testing.T) {
	rep := RoadmapReport{Component: "grafana", Current: "7.3.1", Latest: "7.3.1"}
	out, err := NewReporter(TextFormat).GenerateRoadmapReport(&rep)
	require.NoError(t, err)
	assert.Contains(t, string(out), "Already at the latest version.")
}
