package gitops

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// ChartEdit bumps a chart release's pinned version wherever the chart is
// declared: Terraform helm_release blocks and ArgoCD Application manifests.
type ChartEdit struct {
	Chart      string
	OldVersion string
	NewVersion string
}

// RewriteChartVersions walks root for Terraform and YAML files and applies
// each edit in files that mention the edit's chart. Scoping is per file: a
// file declaring the chart gets its matching version strings rewritten.
// Returns the changed file paths relative to root, sorted.
func RewriteChartVersions(root string, edits []ChartEdit) ([]string, error) {
	changed := make(map[string]struct{})

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}

		var kind string
		switch {
		case strings.HasSuffix(path, ".tf"):
			kind = "tf"
		case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
			kind = "yaml"
		default:
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("gitops: read %s: %w", path, err)
		}

		content := string(data)
		modified := false
		for _, e := range edits {
			next, ok := applyChartEdit(content, kind, e)
			if ok {
				content = next
				modified = true
			}
		}
		if !modified {
			return nil
		}

		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("gitops: write %s: %w", path, err)
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		changed[rel] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(changed))
	for path := range changed {
		out = append(out, path)
	}
	sort.Strings(out)
	return out, nil
}

// mergeChanged unions two sorted path lists, keeping the result sorted and
// free of duplicates.
func mergeChanged(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, p := range list {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func applyChartEdit(content, kind string, e ChartEdit) (string, bool) {
	var declares, versionLine *regexp.Regexp
	var replacement string

	switch kind {
	case "tf":
		declares = regexp.MustCompile(`chart\s*=\s*"` + regexp.QuoteMeta(e.Chart) + `"`)
		versionLine = regexp.MustCompile(`(version\s*=\s*")` + regexp.QuoteMeta(e.OldVersion) + `(")`)
		replacement = "${1}" + e.NewVersion + "${2}"
	case "yaml":
		declares = regexp.MustCompile(`(?m)chart:\s*["']?` + regexp.QuoteMeta(e.Chart) + `["']?\s*$`)
		versionLine = regexp.MustCompile(`(targetRevision:\s*["']?)` + regexp.QuoteMeta(e.OldVersion) + `(["']?)`)
		replacement = "${1}" + e.NewVersion + "${2}"
	default:
		return content, false
	}

	if !declares.MatchString(content) || !versionLine.MatchString(content) {
		return content, false
	}
	return versionLine.ReplaceAllString(content, replacement), true
}
