package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopatch-io/autopatch/pkg/version"
)

func TestDefaultSafeVersions(t *testing.T) {
	b, err := Default()
	require.NoError(t, err)

	target, ok := b.SafeVersion("nginx", "1.23.1")
	assert.True(t, ok)
	assert.Equal(t, "1.23.4", target)

	// Registry prefixes are stripped before lookup.
	target, ok = b.SafeVersion("docker.io/library/nginx", "1.25.0")
	assert.True(t, ok)
	assert.Equal(t, "1.25.4", target)

	_, ok = b.SafeVersion("nginx", "9.9.9")
	assert.False(t, ok)
	_, ok = b.SafeVersion("unknown-image", "1.0.0")
	assert.False(t, ok)
}

func TestKnownReleasesSorted(t *testing.T) {
	b, err := Default()
	require.NoError(t, err)

	releases := b.KnownReleases("velero")
	require.NotEmpty(t, releases)
	for i := 1; i < len(releases); i++ {
		assert.True(t, version.Less(releases[i-1], releases[i]),
			"%s should sort before %s", releases[i-1], releases[i])
	}

	assert.Nil(t, b.KnownReleases("no-such-chart"))
}

func TestChangesBetween(t *testing.T) {
	b, err := Default()
	require.NoError(t, err)

	changes := b.ChangesBetween("velero", version.MustParse("4.3.0"), version.MustParse("7.2.2"))
	require.Len(t, changes, 2)
	assert.Equal(t, "5.0.0", changes[0].Version)
	assert.Equal(t, "7.0.0", changes[1].Version)

	// Exclusive start: a change at exactly "from" is not repeated.
	changes = b.ChangesBetween("velero", version.MustParse("5.0.0"), version.MustParse("6.7.0"))
	assert.Empty(t, changes)
}

func TestLoadOverlay(t *testing.T) {
	dir := t.TempDir()
	overlay := `
[images.nginx]
"1.23.1" = "1.23.9"

[images.mycorp-app]
"2.0.0" = "2.0.5"

[charts.velero]
releases = ["10.1.3", "11.2.0"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "site.toml"), []byte(overlay), 0o644))

	b, err := Load(dir)
	require.NoError(t, err)

	// Overlay wins for existing keys and adds new images.
	target, ok := b.SafeVersion("nginx", "1.23.1")
	assert.True(t, ok)
	assert.Equal(t, "1.23.9", target)
	_, ok = b.SafeVersion("mycorp-app", "2.0.0")
	assert.True(t, ok)

	// Untouched defaults survive the overlay.
	target, ok = b.SafeVersion("redis", "7.0.0")
	assert.True(t, ok)
	assert.Equal(t, "7.0.14", target)

	// Chart entries are replaced wholesale.
	assert.Len(t, b.KnownReleases("velero"), 2)

	// The shared defaults are not mutated by the overlay.
	def, err := Default()
	require.NoError(t, err)
	target, ok = def.SafeVersion("nginx", "1.23.1")
	assert.True(t, ok)
	assert.Equal(t, "1.23.4", target)
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "nginx", BaseName("nginx"))
	assert.Equal(t, "nginx", BaseName("library/nginx"))
	assert.Equal(t, "nginx", BaseName("registry.example.com/team/nginx:1.23.1"))
}
