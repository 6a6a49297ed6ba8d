package plan

import (
	"errors"
	"fmt"

	"github.com/autopatch-io/autopatch/pkg/version"
)

// ErrIncompleteVersionHistory is returned when the known release history has
// a hole between the current and latest major versions. The builder refuses
// to plan around a missing major rather than silently skipping it.
var ErrIncompleteVersionHistory = errors.New("plan: known release history is missing an intermediate major version")

// Step is one hop of an upgrade roadmap.
type Step struct {
	Component string
	// Number is the 1-based position within the roadmap.
	Number  int
	Current version.Version
	Target  version.Version
}

// Identifier names the change-request branch for this step. It is stable
// across replanning: the target minor/patch within a major line may move as
// new releases appear, but the major it lands on does not.
func (s Step) Identifier() string {
	return fmt.Sprintf("upgrade/%s/major-%d", s.Component, s.Target.Major)
}

// Roadmap is the ordered upgrade sequence for a single component.
type Roadmap struct {
	Component string
	Current   version.Version
	Latest    version.Version
	Steps     []Step
}

// BuildRoadmap expands a current -> latest pair into ordered single-major
// steps.
//
// When latest is at most one major ahead the roadmap is the direct upgrade.
// Otherwise one step is emitted per major version crossed, each targeting
// the newest release known within that major line, with the final step
// landing exactly on latest. known is the component's known release history;
// if it lacks any intermediate major the builder returns
// ErrIncompleteVersionHistory.
func BuildRoadmap(component string, current, latest version.Version, known []version.Version) (Roadmap, error) {
	r := Roadmap{Component: component, Current: current, Latest: latest}

	if version.MajorGap(current, latest) <= 1 {
		r.Steps = []Step{{Component: component, Number: 1, Current: current, Target: latest}}
		return r, nil
	}

	newest := make(map[int]version.Version)
	for _, v := range known {
		if best, ok := newest[v.Major]; !ok || version.Less(best, v) {
			newest[v.Major] = v
		}
	}

	from := current
	num := 0
	for major := current.Major + 1; major <= latest.Major; major++ {
		target, ok := newest[major]
		if major == latest.Major {
			// The caller already told us the overall latest; the
			// final step lands there regardless of what the
			// history says about that major line.
			target = latest
		} else if !ok {
			return Roadmap{}, fmt.Errorf("%w: %s has no known release for major %d between %s and %s",
				ErrIncompleteVersionHistory, component, major, current, latest)
		}
		num++
		r.Steps = append(r.Steps, Step{
			Component: component,
			Number:    num,
			Current:   from,
			Target:    target,
		})
		from = target
	}

	return r, nil
}
