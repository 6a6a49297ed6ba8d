package fix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopatch-io/autopatch/pkg/knowledge"
)

func newTestResolver(t *testing.T, opts ...Option) *Resolver {
	t.Helper()
	kb, err := knowledge.Default()
	require.NoError(t, err)
	return NewResolver(kb, opts...)
}

func TestSuggestOverrideHit(t *testing.T) {
	r := newTestResolver(t)

	s, err := r.Suggest("nginx", "1.23.1")
	require.NoError(t, err)
	assert.Equal(t, "1.23.4", s.Target.String())
	assert.Equal(t, ConfidenceHigh, s.Confidence)
	assert.Equal(t, "nginx:1.23.1", s.CurrentRef())
	assert.Equal(t, "nginx:1.23.4", s.TargetRef())
}

func TestSuggestOverrideHitWithRegistryPath(t *testing.T) {
	r := newTestResolver(t)

	s, err := r.Suggest("docker.io/library/nginx", "1.25.1")
	require.NoError(t, err)
	assert.Equal(t, "1.25.4", s.Target.String())
	assert.Equal(t, ConfidenceHigh, s.Confidence)
}

func TestSuggestHeuristicFallback(t *testing.T) {
	r := newTestResolver(t)

	s, err := r.Suggest("unknown-image", "2.4.0")
	require.NoError(t, err)
	assert.Equal(t, "2.4.3", s.Target.String())
	assert.Equal(t, "2.4.3", s.Target.Raw)
	assert.Equal(t, "unknown-image:2.4.3", s.TargetRef())
	assert.Equal(t, ConfidenceMedium, s.Confidence)
}

func TestSuggestHeuristicDropsPrerelease(t *testing.T) {
	r := newTestResolver(t)

	s, err := r.Suggest("unknown-image", "1.2.0-rc.1")
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", s.Target.String())
}

func TestSuggestCustomBumpStep(t *testing.T) {
	r := newTestResolver(t, WithPatchBumpStep(1))

	s, err := r.Suggest("unknown-image", "2.4.0")
	require.NoError(t, err)
	assert.Equal(t, "2.4.1", s.Target.String())
}

func TestSuggestUnresolvable(t *testing.T) {
	r := newTestResolver(t)

	_, err := r.Suggest("unknown-image", "latest")
	assert.ErrorIs(t, err, ErrUnresolvableVersion)

	_, err = r.Suggest("unknown-image", "sha256:deadbeef")
	assert.ErrorIs(t, err, ErrUnresolvableVersion)
}
