package plan

import (
	"fmt"
	"sort"

	"github.com/autopatch-io/autopatch/pkg/version"
)

// Candidate is one pending upgrade produced by a planning run. Candidates
// are recomputed fresh every run and never mutated once built.
type Candidate struct {
	Component string
	Current   version.Version
	Target    version.Version
	// Severity carries the originating finding's severity when the
	// candidate came from a vulnerability scan, empty otherwise.
	Severity string
	Tier     Tier
}

// Batch groups candidates of one tier into a single proposed change.
type Batch struct {
	Name       string
	Tier       Tier
	Candidates []Candidate
}

// BatchName is the change-request branch for a tier's batch. One open batch
// per tier at a time; the name carries no timestamp so replanning against an
// unchanged state reproduces it exactly.
func BatchName(tier Tier) string {
	return fmt.Sprintf("autopatch/batch-%s", tier)
}

// OpenBatches records which components are already part of an open batch,
// per tier. Planning never re-adds those components.
type OpenBatches map[Tier]map[string]struct{}

// Covers reports whether component is already in an open batch of tier.
func (o OpenBatches) Covers(tier Tier, component string) bool {
	set, ok := o[tier]
	if !ok {
		return false
	}
	_, ok = set[component]
	return ok
}

// PlanBatches groups candidates by tier. Within a tier candidates are
// sorted by component name so identical inputs always produce identical
// batches. TierCurrent candidates need no action and are dropped, as are
// components already covered by an open batch of the same tier. A component
// appearing more than once within a tier keeps only its first occurrence
// after sorting.
func PlanBatches(candidates []Candidate, open OpenBatches) map[Tier]Batch {
	byTier := make(map[Tier][]Candidate)
	for _, c := range candidates {
		if c.Tier == TierCurrent || c.Tier == "" {
			continue
		}
		if open.Covers(c.Tier, c.Component) {
			continue
		}
		byTier[c.Tier] = append(byTier[c.Tier], c)
	}

	batches := make(map[Tier]Batch, len(byTier))
	for tier, members := range byTier {
		sort.Slice(members, func(i, j int) bool {
			if members[i].Component != members[j].Component {
				return members[i].Component < members[j].Component
			}
			return version.Less(members[i].Current, members[j].Current)
		})

		deduped := members[:0]
		seen := make(map[string]struct{}, len(members))
		for _, c := range members {
			if _, ok := seen[c.Component]; ok {
				continue
			}
			seen[c.Component] = struct{}{}
			deduped = append(deduped, c)
		}

		batches[tier] = Batch{
			Name:       BatchName(tier),
			Tier:       tier,
			Candidates: deduped,
		}
	}
	return batches
}
