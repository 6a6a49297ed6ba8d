// Package helm discovers Helm chart releases in Terraform code, ArgoCD
// Application manifests and live clusters, and resolves their latest
// available versions from chart repositories.
package helm

import (
	"fmt"

	"github.com/autopatch-io/autopatch/pkg/plan"
	"github.com/autopatch-io/autopatch/pkg/version"
)

// Release is a Helm release found by one of the scanners.
type Release struct {
	Name           string `json:"name"`
	Chart          string `json:"chart"`
	Repository     string `json:"repository"`
	CurrentVersion string `json:"current_version"`
	LatestVersion  string `json:"latest_version,omitempty"`
	Namespace      string `json:"namespace"`
	SourceFile     string `json:"source_file,omitempty"`
	SourceLine     int    `json:"source_line,omitempty"`
	AppVersion     string `json:"app_version,omitempty"`
	// KnownVersions lists every version the chart repository reports,
	// ascending. The roadmap builder walks it when the release is
	// several majors behind.
	KnownVersions []string `json:"known_versions,omitempty"`
}

// Outdated reports whether a newer version is known.
func (r Release) Outdated() bool {
	return r.LatestVersion != "" && r.CurrentVersion != r.LatestVersion
}

// Classify grades the release's upgrade urgency. Unparseable current or
// latest versions return an error so the caller reports the release as
// unknown instead of misfiling it.
func (r Release) Classify() (plan.Tier, error) {
	if r.LatestVersion == "" {
		return plan.TierCurrent, nil
	}
	current, err := version.Parse(r.CurrentVersion)
	if err != nil {
		return "", fmt.Errorf("helm: release %s current version: %w", r.Name, err)
	}
	latest, err := version.Parse(r.LatestVersion)
	if err != nil {
		return "", fmt.Errorf("helm: release %s latest version: %w", r.Name, err)
	}
	return plan.Classify(current, latest), nil
}

// Known parses KnownVersions, dropping entries the parser refuses.
func (r Release) Known() []version.Version {
	out := make([]version.Version, 0, len(r.KnownVersions))
	for _, raw := range r.KnownVersions {
		v, err := version.Parse(raw)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}
