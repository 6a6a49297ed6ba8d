package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopatch-io/autopatch/pkg/version"
)

func versions(raws ...string) []version.Version {
	out := make([]version.Version, 0, len(raws))
	for _, r := range raws {
		out = append(out, version.MustParse(r))
	}
	return out
}

func TestBuildRoadmapSingleStep(t *testing.T) {
	r, err := BuildRoadmap("grafana", version.MustParse("9.2.10"), version.MustParse("10.3.0"), nil)
	require.NoError(t, err)
	require.Len(t, r.Steps, 1)
	assert.Equal(t, "9.2.10", r.Steps[0].Current.String())
	assert.Equal(t, "10.3.0", r.Steps[0].Target.String())
	assert.Equal(t, 1, r.Steps[0].Number)
}

func TestBuildRoadmapMinorOnly(t *testing.T) {
	r, err := BuildRoadmap("redis", version.MustParse("7.0.0"), version.MustParse("7.0.14"), nil)
	require.NoError(t, err)
	require.Len(t, r.Steps, 1)
	assert.Equal(t, "7.0.14", r.Steps[0].Target.String())
}

func TestBuildRoadmapMultiMajor(t *testing.T) {
	known := versions("4.3.0", "5.4.1", "6.7.0", "7.2.2")
	r, err := BuildRoadmap("velero", version.MustParse("4.3.0"), version.MustParse("7.2.2"), known)
	require.NoError(t, err)
	require.Len(t, r.Steps, 3)

	assert.Equal(t, "4.3.0", r.Steps[0].Current.String())
	assert.Equal(t, "5.4.1", r.Steps[0].Target.String())
	assert.Equal(t, "5.4.1", r.Steps[1].Current.String())
	assert.Equal(t, "6.7.0", r.Steps[1].Target.String())
	assert.Equal(t, "6.7.0", r.Steps[2].Current.String())
	assert.Equal(t, "7.2.2", r.Steps[2].Target.String())

	// Strictly increasing majors, terminating exactly at latest.
	for i := 1; i < len(r.Steps); i++ {
		assert.Greater(t, r.Steps[i].Target.Major, r.Steps[i-1].Target.Major)
	}
	assert.Equal(t, r.Latest, r.Steps[len(r.Steps)-1].Target)
}

func TestBuildRoadmapPicksNewestWithinMajor(t *testing.T) {
	known := versions("1.0.0", "2.0.0", "2.4.0", "2.9.1", "3.1.0")
	r, err := BuildRoadmap("app", version.MustParse("1.0.0"), version.MustParse("3.2.0"), known)
	require.NoError(t, err)
	require.Len(t, r.Steps, 2)
	assert.Equal(t, "2.9.1", r.Steps[0].Target.String())
	assert.Equal(t, "3.2.0", r.Steps[1].Target.String())
}

func TestBuildRoadmapIncompleteHistory(t *testing.T) {
	// No known release in the 6.x line.
	known := versions("4.3.0", "5.4.1", "7.2.2")
	_, err := BuildRoadmap("velero", version.MustParse("4.3.0"), version.MustParse("7.2.2"), known)
	assert.ErrorIs(t, err, ErrIncompleteVersionHistory)
}

func TestStepIdentifierStableAcrossPatchLevels(t *testing.T) {
	a := Step{Component: "velero", Number: 1, Target: version.MustParse("5.4.1")}
	b := Step{Component: "velero", Number: 1, Target: version.MustParse("5.5.0")}
	assert.Equal(t, a.Identifier(), b.Identifier())
	assert.Equal(t, "upgrade/velero/major-5", a.Identifier())
}
