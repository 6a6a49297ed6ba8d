package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "origin", cfg.Git.Remote)
	assert.Equal(t, "main", cfg.Git.MainBranch)
	assert.Equal(t, "github", cfg.Git.Platform)
	assert.Equal(t, 3, cfg.PatchBumpStep)
	assert.Equal(t, []string{"Critical", "High"}, cfg.Severities)
	assert.Equal(t, 60*time.Second, cfg.ReconcileInterval)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "autopatch.yaml")
	body := `
defectdojo:
  url: https://dojo.example.com/
  api_key: token123
  product_id: 7
git:
  platform: gitlab
  main_branch: master
patch_bump_step: 1
reconcile_interval: 5m
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	// Trailing slash is trimmed.
	assert.Equal(t, "https://dojo.example.com", cfg.DefectDojo.URL)
	assert.Equal(t, 7, cfg.DefectDojo.ProductID)
	assert.Equal(t, "gitlab", cfg.Git.Platform)
	assert.Equal(t, "master", cfg.Git.MainBranch)
	assert.Equal(t, 1, cfg.PatchBumpStep)
	assert.Equal(t, 5*time.Minute, cfg.ReconcileInterval)

	// File did not touch these, defaults remain.
	assert.Equal(t, "origin", cfg.Git.Remote)
	assert.NoError(t, cfg.RequireDojo())
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("DEFECTDOJO_URL", "https://env.example.com")
	t.Setenv("DEFECTDOJO_API_KEY", "envtoken")
	t.Setenv("GIT_PLATFORM", "GitLab")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.DefectDojo.URL)
	assert.Equal(t, "gitlab", cfg.Git.Platform)
	assert.NoError(t, cfg.RequireDojo())
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("git:\n  platform: svn\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestRequireDojo(t *testing.T) {
	t.Setenv("DEFECTDOJO_URL", "")
	t.Setenv("DEFECTDOJO_API_KEY", "")
	t.Setenv("DEFECTDOJO_DSN", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Error(t, cfg.RequireDojo())

	cfg.DefectDojo.DSN = "dojo:secret@tcp(localhost:3306)/defectdojo"
	assert.NoError(t, cfg.RequireDojo())
}
