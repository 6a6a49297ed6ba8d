// Package plan holds the upgrade planning engine: urgency classification,
// multi-major roadmap construction, batch grouping and the rollout gate.
// Everything here is a pure function from a state snapshot to a decision;
// all I/O lives with the callers.
package plan

import (
	"github.com/autopatch-io/autopatch/pkg/version"
)

// Tier is the urgency classification of a pending upgrade.
type Tier string

const (
	// TierCurrent means no action: the component is on the latest version.
	TierCurrent Tier = "current"
	// TierMinor means behind within the same major line.
	TierMinor Tier = "minor"
	// TierMajor means one or two major versions behind.
	TierMajor Tier = "major"
	// TierCritical means three or more major versions behind.
	TierCritical Tier = "critical"
)

// Rank orders tiers by urgency, most urgent first. Unknown tiers sort last.
func (t Tier) Rank() int {
	switch t {
	case TierCritical:
		return 0
	case TierMajor:
		return 1
	case TierMinor:
		return 2
	case TierCurrent:
		return 3
	default:
		return 4
	}
}

// ClassifyGap converts a major-version gap into a tier. Breaking-change risk
// dominates: any same-major staleness is the caller's business (see
// Classify), this function only looks at crossed majors.
func ClassifyGap(gap int) Tier {
	switch {
	case gap >= 3:
		return TierCritical
	case gap >= 1:
		return TierMajor
	default:
		return TierCurrent
	}
}

// Classify grades how urgently current should move to latest. The major gap
// decides first; a component behind only on minor or patch level is always
// TierMinor no matter how many releases behind it is.
func Classify(current, latest version.Version) Tier {
	if gap := version.MajorGap(current, latest); gap > 0 {
		return ClassifyGap(gap)
	}
	if version.Less(current, latest) {
		return TierMinor
	}
	return TierCurrent
}
