// Package config loads runtime configuration from an optional YAML file,
// overridden by environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/autopatch-io/autopatch/pkg/fix"
)

// Config is the full application configuration.
type Config struct {
	// DefectDojo holds findings-source settings.
	DefectDojo DefectDojoConfig `yaml:"defectdojo"`
	// Git holds change-request settings.
	Git GitConfig `yaml:"git"`
	// SLOPath is the append-only run record file.
	SLOPath string `yaml:"slo_path"`
	// KnowledgeDir overlays the embedded knowledge base when set.
	KnowledgeDir string `yaml:"knowledge_dir"`
	// PatchBumpStep overrides the fallback patch bump; zero keeps the
	// default.
	PatchBumpStep int `yaml:"patch_bump_step"`
	// Severities are the finding severities the fixer acts on.
	Severities []string `yaml:"severities"`
	// ReconcileInterval is the controller loop period.
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	// ListenAddr is the dashboard/API bind address.
	ListenAddr string `yaml:"listen_addr"`
	// MetricsAddr is the controller health/metrics bind address.
	MetricsAddr string `yaml:"metrics_addr"`
}

// DefectDojoConfig points at the vulnerability findings source. Either the
// REST endpoint (URL + APIKey) or a direct database DSN must be set for
// commands that read findings.
type DefectDojoConfig struct {
	URL       string `yaml:"url"`
	APIKey    string `yaml:"api_key"`
	ProductID int    `yaml:"product_id"`
	// DSN is a MySQL data source name for reading findings straight from
	// the DefectDojo database, bypassing the REST API.
	DSN string `yaml:"dsn"`
}

// GitConfig describes the repository change requests are proposed against.
type GitConfig struct {
	RepoPath   string `yaml:"repo_path"`
	Remote     string `yaml:"remote"`
	MainBranch string `yaml:"main_branch"`
	// Platform selects the CLI used for change requests: "github" (gh)
	// or "gitlab" (glab).
	Platform string `yaml:"platform"`
	// BranchPrefix namespaces autogenerated fix branches.
	BranchPrefix string `yaml:"branch_prefix"`
}

// Defaults returns a Config with every optional field at its default.
func Defaults() *Config {
	return &Config{
		Git: GitConfig{
			RepoPath:     ".",
			Remote:       "origin",
			MainBranch:   "main",
			Platform:     "github",
			BranchPrefix: "autofix",
		},
		SLOPath:           "slo_data.json",
		PatchBumpStep:     fix.DefaultPatchBumpStep,
		Severities:        []string{"Critical", "High"},
		ReconcileInterval: 60 * time.Second,
		ListenAddr:        ":8080",
		MetricsAddr:       ":8081",
	}
}

// Load reads path (when non-empty) and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.DefectDojo.URL, "DEFECTDOJO_URL")
	setString(&c.DefectDojo.APIKey, "DEFECTDOJO_API_KEY")
	setString(&c.DefectDojo.DSN, "DEFECTDOJO_DSN")
	setInt(&c.DefectDojo.ProductID, "DEFECTDOJO_PRODUCT_ID")

	setString(&c.Git.RepoPath, "GIT_REPO_PATH")
	setString(&c.Git.Remote, "GIT_REMOTE")
	setString(&c.Git.MainBranch, "GIT_MAIN_BRANCH")
	if v := os.Getenv("GIT_PLATFORM"); v != "" {
		c.Git.Platform = strings.ToLower(v)
	}

	setString(&c.SLOPath, "SLO_DB_PATH")
	setString(&c.KnowledgeDir, "KNOWLEDGE_DIR")
	setInt(&c.PatchBumpStep, "PATCH_BUMP_STEP")
}

func (c *Config) validate() error {
	switch c.Git.Platform {
	case "github", "gitlab":
	default:
		return fmt.Errorf("config: unsupported git platform %q", c.Git.Platform)
	}
	if c.PatchBumpStep < 0 {
		return fmt.Errorf("config: patch_bump_step must not be negative")
	}
	if c.ReconcileInterval <= 0 {
		return fmt.Errorf("config: reconcile_interval must be positive")
	}
	c.DefectDojo.URL = strings.TrimRight(c.DefectDojo.URL, "/")
	return nil
}

// RequireDojo checks that a findings source is configured.
func (c *Config) RequireDojo() error {
	if c.DefectDojo.DSN != "" {
		return nil
	}
	if c.DefectDojo.URL == "" || c.DefectDojo.APIKey == "" {
		return fmt.Errorf("config: DEFECTDOJO_URL and DEFECTDOJO_API_KEY (or DEFECTDOJO_DSN) must be set")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
