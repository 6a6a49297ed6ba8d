package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/autopatch-io/autopatch/pkg/version"
)

func TestClassifyGap(t *testing.T) {
	assert.Equal(t, TierCurrent, ClassifyGap(0))
	assert.Equal(t, TierMajor, ClassifyGap(1))
	assert.Equal(t, TierMajor, ClassifyGap(2))
	assert.Equal(t, TierCritical, ClassifyGap(3))
	assert.Equal(t, TierCritical, ClassifyGap(5))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		current, latest string
		want            Tier
	}{
		{"1.0.0", "1.0.0", TierCurrent},
		{"1.0.0", "1.0.5", TierMinor},
		{"1.0.0", "1.25.0", TierMinor}, // many minors behind is still minor
		{"1.0.0", "2.0.0", TierMajor},
		{"1.0.0", "3.9.9", TierMajor},
		{"1.0.0", "4.0.0", TierCritical},
		{"9.2.10", "10.3.0", TierMajor},
		{"2.0.0", "1.0.0", TierCurrent}, // never suggests downgrades
	}
	for _, tc := range cases {
		got := Classify(version.MustParse(tc.current), version.MustParse(tc.latest))
		assert.Equal(t, tc.want, got, "%s -> %s", tc.current, tc.latest)
	}
}

func TestTierRank(t *testing.T) {
	assert.Less(t, TierCritical.Rank(), TierMajor.Rank())
	assert.Less(t, TierMajor.Rank(), TierMinor.Rank())
	assert.Less(t, TierMinor.Rank(), TierCurrent.Rank())
}
