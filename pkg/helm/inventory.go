package helm

import (
	"context"
	"fmt"
)

// Inventory aggregates release sources: Terraform trees, ArgoCD Application
// manifests, and optionally the live cluster. Zero-value fields are skipped.
type Inventory struct {
	TerraformDir string
	ArgoCDDir    string
	// Cluster, when set, adds `helm list` output to the inventory.
	Cluster *RepoClient
}

// List gathers releases from every configured source, in source order.
func (inv Inventory) List(ctx context.Context) ([]Release, error) {
	var releases []Release

	if inv.TerraformDir != "" {
		found, err := ScanTerraformDir(inv.TerraformDir)
		if err != nil {
			return nil, fmt.Errorf("helm: scan terraform %s: %w", inv.TerraformDir, err)
		}
		releases = append(releases, found...)
	}
	if inv.ArgoCDDir != "" {
		found, err := ScanArgoCDApps(inv.ArgoCDDir)
		if err != nil {
			return nil, fmt.Errorf("helm: scan argocd %s: %w", inv.ArgoCDDir, err)
		}
		releases = append(releases, found...)
	}
	if inv.Cluster != nil {
		found, err := inv.Cluster.ListCluster(ctx)
		if err != nil {
			return nil, fmt.Errorf("helm: list cluster releases: %w", err)
		}
		releases = append(releases, found...)
	}

	return releases, nil
}
