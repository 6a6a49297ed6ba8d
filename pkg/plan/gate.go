package plan

import "github.com/autopatch-io/autopatch/pkg/version"

// ActionKind enumerates what the rollout gate can decide.
type ActionKind string

const (
	// ActionCreateStep means open a change request for the named step.
	ActionCreateStep ActionKind = "create-step"
	// ActionWaitForMerge means the step's change request is still open;
	// creating another would duplicate it. Not an error, a logged no-op.
	ActionWaitForMerge ActionKind = "wait-for-merge"
	// ActionComplete means every step of the roadmap has been applied.
	ActionComplete ActionKind = "complete"
)

// Action is the gate's decision for one component roadmap.
type Action struct {
	Kind ActionKind
	// Step is the 1-based roadmap step the decision refers to; zero for
	// ActionComplete.
	Step int
	// Branch is the change-request branch for that step, empty for
	// ActionComplete.
	Branch string
}

// OpenSet is the set of step identifiers that currently have an open,
// unmerged change request.
type OpenSet map[string]struct{}

// NewOpenSet builds an OpenSet from branch names.
func NewOpenSet(ids ...string) OpenSet {
	s := make(OpenSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether id has an open change request.
func (s OpenSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// NextAction decides what to do next for a component roadmap, given the
// component's actual current version and the set of open change requests.
//
// Steps whose target is already covered by current count as merged: a merged
// step's edit lands on the main branch, which is exactly where current is
// read from, so no separate progress ledger is needed. The first uncovered
// step is either waiting on its open change request or ready to be created.
// Re-running at any time reproduces the same decision from the same state.
func NextAction(r Roadmap, current version.Version, open OpenSet) Action {
	for _, step := range r.Steps {
		if version.Compare(step.Target, current) <= 0 {
			continue
		}
		if open.Contains(step.Identifier()) {
			return Action{Kind: ActionWaitForMerge, Step: step.Number, Branch: step.Identifier()}
		}
		return Action{Kind: ActionCreateStep, Step: step.Number, Branch: step.Identifier()}
	}
	return Action{Kind: ActionComplete}
}
