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

package main_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopatch-io/autopatch/pkg/fix"
	"github.com/autopatch-io/autopatch/pkg/knowledge"
	"github.com/autopatch-io/autopatch/pkg/plan"
	"github.com/autopatch-io/autopatch/pkg/slo"
	"github.com/autopatch-io/autopatch/pkg/version"
)

// TestFullPlanningFlow walks the engine end to end: suggest a fix for a
// finding, expand a multi-major chart upgrade into a roadmap, drive the
// rollout gate across simulated merges, and record the run outcome.
func TestFullPlanningFlow(t *testing.T) {
	kb, err := knowledge.Default()
	require.NoError(t, err)

	// 1. A vulnerable image gets a curated fix suggestion.
	resolver := fix.NewResolver(kb)
	sug, err := resolver.Suggest("nginx", "1.23.1")
	require.NoError(t, err)
	assert.Equal(t, "1.23.4", sug.Target.Raw)
	assert.Equal(t, fix.ConfidenceHigh, sug.Confidence)

	// 2. A chart four majors behind is classified critical and expanded
	// into one step per major.
	current := version.MustParse("5.0.2")
	latest := version.MustParse("9.1.2")
	assert.Equal(t, plan.TierCritical, plan.Classify(current, latest))

	roadmap, err := plan.BuildRoadmap("velero", current, latest, kb.KnownReleases("velero"))
	require.NoError(t, err)
	require.Len(t, roadmap.Steps, 4)
	assert.Equal(t, latest, roadmap.Steps[3].Target)

	// 3. The gate walks the roadmap one merged step at a time.
	open := plan.NewOpenSet()
	position := current
	for _, step := range roadmap.Steps {
		action := plan.NextAction(roadmap, position, open)
		require.Equal(t, plan.ActionCreateStep, action.Kind)
		assert.Equal(t, step.Identifier(), action.Branch)

		// Opening the request parks the rollout.
		open = plan.NewOpenSet(action.Branch)
		waiting := plan.NextAction(roadmap, position, open)
		assert.Equal(t, plan.ActionWaitForMerge, waiting.Kind)

		// Merging it advances the current version.
		open = plan.NewOpenSet()
		position = step.Target
	}
	final := plan.NextAction(roadmap, position, open)
	assert.Equal(t, plan.ActionComplete, final.Kind)

	// 4. The run outcome lands in the SLO log.
	tracker, err := slo.NewTracker(filepath.Join(t.TempDir(), "slo.json"))
	require.NoError(t, err)
	_, err = tracker.StartRun(4, 3)
	require.NoError(t, err)
	require.NoError(t, tracker.RecordFix("https://example.com/pr/1"))
	rec, err := tracker.CompleteRun()
	require.NoError(t, err)
	assert.Equal(t, 25.0, rec.SLO())
}
