package helm

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"sync"

	"golang.org/x/mod/semver"
)

// KnownRepos maps repository URLs to the alias they are registered under.
var KnownRepos = map[string]string{
	"https://kubernetes.github.io/autoscaler":                   "autoscaler",
	"https://projectcalico.docs.tigera.io/charts":               "calico",
	"https://kubernetes-sigs.github.io/metrics-server/":         "metrics-server",
	"https://kubernetes.github.io/ingress-nginx":                "ingress-nginx",
	"https://grafana.github.io/helm-charts":                     "grafana",
	"https://prometheus-community.github.io/helm-charts":        "prometheus-community",
	"https://argoproj.github.io/argo-helm":                      "argo",
	"https://charts.longhorn.io":                                "longhorn",
	"https://charts.min.io/":                                    "minio",
	"https://helm.cilium.io/":                                   "cilium",
	"https://metallb.github.io/metallb":                         "metallb",
	"https://traefik.github.io/charts":                          "traefik",
	"https://charts.jetstack.io":                                "jetstack",
	"https://vmware-tanzu.github.io/helm-charts":                "vmware-tanzu",
	"https://aws.github.io/eks-charts":                          "eks",
	"https://sumologic.github.io/sumologic-kubernetes-collection": "sumologic",
}

type runner interface {
	run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			return nil, fmt.Errorf("%s %s: %s", name, strings.Join(args, " "), strings.TrimSpace(string(ee.Stderr)))
		}
		return nil, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return out, nil
}

// RepoClient resolves chart versions through the helm CLI.
type RepoClient struct {
	runner runner

	mu    sync.Mutex
	added map[string]string // repository URL -> alias
}

// NewRepoClient creates a repo client that shells out to helm.
func NewRepoClient() *RepoClient {
	return &RepoClient{runner: execRunner{}, added: make(map[string]string)}
}

type searchEntry struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	AppVersion string `json:"app_version"`
}

// Resolve fills in LatestVersion, AppVersion and KnownVersions for a
// release from its chart repository. Releases without a repository URL are
// left untouched.
func (c *RepoClient) Resolve(ctx context.Context, r *Release) error {
	if r.Repository == "" {
		return nil
	}
	alias, err := c.ensureRepo(ctx, r)
	if err != nil {
		return err
	}

	out, err := c.runner.run(ctx, "helm", "search", "repo",
		fmt.Sprintf("%s/%s", alias, r.Chart), "--versions", "--output", "json")
	if err != nil {
		return fmt.Errorf("helm: search %s/%s: %w", alias, r.Chart, err)
	}

	var entries []searchEntry
	if err := json.Unmarshal(out, &entries); err != nil {
		return fmt.Errorf("helm: parse search output for %s: %w", r.Chart, err)
	}

	var known []string
	for _, e := range entries {
		if semver.IsValid(canonical(e.Version)) {
			known = append(known, e.Version)
		}
	}
	if len(known) == 0 {
		return nil
	}
	sort.Slice(known, func(i, j int) bool {
		return semver.Compare(canonical(known[i]), canonical(known[j])) < 0
	})

	r.KnownVersions = known
	r.LatestVersion = known[len(known)-1]
	for _, e := range entries {
		if e.Version == r.LatestVersion {
			r.AppVersion = e.AppVersion
			break
		}
	}
	return nil
}

func (c *RepoClient) ensureRepo(ctx context.Context, r *Release) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if alias, ok := c.added[r.Repository]; ok {
		return alias, nil
	}
	alias, ok := KnownRepos[r.Repository]
	if !ok {
		alias = strings.ReplaceAll(r.Name, "-", "_")
	}

	if _, err := c.runner.run(ctx, "helm", "repo", "add", alias, r.Repository); err != nil {
		if !strings.Contains(err.Error(), "already exists") {
			return "", fmt.Errorf("helm: add repo %s: %w", r.Repository, err)
		}
	}
	if _, err := c.runner.run(ctx, "helm", "repo", "update", alias); err != nil {
		return "", fmt.Errorf("helm: update repo %s: %w", alias, err)
	}
	c.added[r.Repository] = alias
	return alias, nil
}

type listEntry struct {
	Name       string `json:"name"`
	Namespace  string `json:"namespace"`
	Chart      string `json:"chart"`
	AppVersion string `json:"app_version"`
}

// ListCluster returns the releases installed in the current cluster via
// `helm list`. The repository is unknown from this view; Resolve can only
// be called for these releases after the caller maps charts to repos.
func (c *RepoClient) ListCluster(ctx context.Context) ([]Release, error) {
	out, err := c.runner.run(ctx, "helm", "list", "--all-namespaces", "--output", "json")
	if err != nil {
		return nil, fmt.Errorf("helm: list releases: %w", err)
	}

	var entries []listEntry
	if err := json.Unmarshal(out, &entries); err != nil {
		return nil, fmt.Errorf("helm: parse list output: %w", err)
	}

	releases := make([]Release, 0, len(entries))
	for _, e := range entries {
		chart, chartVersion := splitChartRef(e.Chart)
		releases = append(releases, Release{
			Name:           e.Name,
			Chart:          chart,
			CurrentVersion: chartVersion,
			Namespace:      e.Namespace,
			AppVersion:     e.AppVersion,
		})
	}
	return releases, nil
}

// splitChartRef splits the "chart-1.2.3" form helm list reports. The
// version is taken from the last dash followed by a digit, so pre-release
// suffixes like "traefik-10.0.0-rc1" stay with the version, not the chart.
func splitChartRef(ref string) (chart, chartVersion string) {
	for i := len(ref) - 2; i >= 0; i-- {
		if ref[i] == '-' && ref[i+1] >= '0' && ref[i+1] <= '9' {
			return ref[:i], ref[i+1:]
		}
	}
	return ref, ""
}

// canonical normalizes a chart version for golang.org/x/mod/semver, which
// requires the leading "v".
func canonical(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}
