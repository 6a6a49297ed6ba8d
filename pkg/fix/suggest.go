// Package fix maps vulnerable (component, version) pairs to safe target
// versions. Resolution is two-tier: a curated override table first, then a
// conservative patch-bump heuristic for parseable versions the table does
// not know.
package fix

import (
	"errors"
	"fmt"

	"github.com/autopatch-io/autopatch/pkg/knowledge"
	"github.com/autopatch-io/autopatch/pkg/version"
)

// ErrUnresolvableVersion is returned when the installed version cannot be
// parsed and no override exists, so no safe target can be named. The caller
// must report the component as not auto-fixable instead of guessing.
var ErrUnresolvableVersion = errors.New("fix: no safe target version for component")

// DefaultPatchBumpStep is how far the fallback heuristic bumps the patch
// component. The constant is deliberately small so the heuristic never
// proposes an untested large jump; it is overridable per resolver because
// the value itself is a policy knob, not a derived quantity.
const DefaultPatchBumpStep = 3

// Confidence grades how much trust a suggestion deserves.
type Confidence string

const (
	// ConfidenceHigh marks suggestions backed by the curated table.
	ConfidenceHigh Confidence = "high"
	// ConfidenceMedium marks suggestions from the patch-bump heuristic.
	ConfidenceMedium Confidence = "medium"
)

// Suggestion is a proposed version change for one component.
type Suggestion struct {
	Component  string
	Current    version.Version
	Target     version.Version
	Confidence Confidence
	Reason     string
}

// CurrentRef returns the component pinned at its current version,
// e.g. "nginx:1.23.1".
func (s Suggestion) CurrentRef() string {
	return fmt.Sprintf("%s:%s", s.Component, s.Current.Raw)
}

// TargetRef returns the component pinned at the suggested version.
func (s Suggestion) TargetRef() string {
	return fmt.Sprintf("%s:%s", s.Component, s.Target)
}

// Resolver produces fix suggestions against one immutable knowledge base.
type Resolver struct {
	kb       *knowledge.Base
	bumpStep int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPatchBumpStep overrides DefaultPatchBumpStep.
func WithPatchBumpStep(step int) Option {
	return func(r *Resolver) {
		if step > 0 {
			r.bumpStep = step
		}
	}
}

// NewResolver creates a resolver over the given knowledge base.
func NewResolver(kb *knowledge.Base, opts ...Option) *Resolver {
	r := &Resolver{kb: kb, bumpStep: DefaultPatchBumpStep}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Suggest resolves a target version for a component at installed.
//
// The override table is checked first and wins with high confidence. On a
// miss the installed version is parsed and its patch component bumped by the
// configured step with medium confidence. If installed does not parse and
// the table has no entry either, ErrUnresolvableVersion is returned.
func (r *Resolver) Suggest(component, installed string) (Suggestion, error) {
	if mapped, ok := r.kb.SafeVersion(component, installed); ok {
		target, err := version.Parse(mapped)
		if err != nil {
			return Suggestion{}, fmt.Errorf("fix: override table entry %s=%q for %s does not parse: %w",
				installed, mapped, component, err)
		}
		current, err := version.Parse(installed)
		if err != nil {
			// The table can vouch for tags the parser does not
			// understand; keep the raw string for display.
			current = version.Version{Raw: installed}
		}
		return Suggestion{
			Component:  component,
			Current:    current,
			Target:     target,
			Confidence: ConfidenceHigh,
			Reason:     fmt.Sprintf("curated mapping %s -> %s", installed, mapped),
		}, nil
	}

	current, err := version.Parse(installed)
	if err != nil {
		return Suggestion{}, fmt.Errorf("%w: %s@%q: %v", ErrUnresolvableVersion, component, installed, err)
	}

	target := version.Version{
		Major: current.Major,
		Minor: current.Minor,
		Patch: current.Patch + r.bumpStep,
		// Pre-release suffixes are dropped from the target for
		// stability.
	}
	target.Raw = target.String()
	return Suggestion{
		Component:  component,
		Current:    current,
		Target:     target,
		Confidence: ConfidenceMedium,
		Reason:     fmt.Sprintf("no curated mapping, patch bumped by %d", r.bumpStep),
	}, nil
}
