package helm

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type argoApplication struct {
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
	Metadata   struct {
		Name string `yaml:"name"`
	} `yaml:"metadata"`
	Spec struct {
		Destination struct {
			Namespace string `yaml:"namespace"`
		} `yaml:"destination"`
		Source  *argoSource  `yaml:"source"`
		Sources []argoSource `yaml:"sources"`
	} `yaml:"spec"`
}

type argoSource struct {
	RepoURL        string `yaml:"repoURL"`
	Chart          string `yaml:"chart"`
	TargetRevision string `yaml:"targetRevision"`
}

// ScanArgoCDApps walks dir for YAML files and extracts Helm chart sources
// from ArgoCD Application manifests. Git path sources (no chart field) are
// ignored.
func ScanArgoCDApps(dir string) ([]Release, error) {
	var releases []Release
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			return nil
		}
		found, err := parseArgoFile(path)
		if err != nil {
			// Not every YAML in a repo is an ArgoCD Application;
			// unparseable files are skipped, not fatal.
			return nil
		}
		releases = append(releases, found...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return releases, nil
}

func parseArgoFile(path string) ([]Release, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var releases []Release
	dec := yaml.NewDecoder(f)
	for {
		var app argoApplication
		if err := dec.Decode(&app); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("helm: parse %s: %w", path, err)
		}
		if app.Kind != "Application" || !strings.HasPrefix(app.APIVersion, "argoproj.io/") {
			continue
		}

		namespace := app.Spec.Destination.Namespace
		if namespace == "" {
			namespace = "default"
		}

		sources := app.Spec.Sources
		if app.Spec.Source != nil {
			sources = append([]argoSource{*app.Spec.Source}, sources...)
		}
		for _, src := range sources {
			if src.Chart == "" {
				continue
			}
			releases = append(releases, Release{
				Name:           app.Metadata.Name,
				Chart:          src.Chart,
				Repository:     src.RepoURL,
				CurrentVersion: src.TargetRevision,
				Namespace:      namespace,
				SourceFile:     path,
			})
		}
	}
	return releases, nil
}
