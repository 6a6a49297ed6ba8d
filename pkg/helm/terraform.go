package helm

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	helmReleaseBlock = regexp.MustCompile(`(?s)resource\s+"helm_release"\s+"([^"]+)"\s*\{([^}]+(?:\{[^}]*\}[^}]*)*)\}`)
)

// ScanTerraformDir walks dir for *.tf files and extracts helm_release
// resources. Releases whose chart or version come from variables are skipped;
// only literal pins can be compared and rewritten.
func ScanTerraformDir(dir string) ([]Release, error) {
	var releases []Release
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".tf") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("helm: read %s: %w", path, err)
		}
		releases = append(releases, parseTerraform(string(data), path)...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return releases, nil
}

func parseTerraform(content, sourceFile string) []Release {
	var releases []Release
	for _, m := range helmReleaseBlock.FindAllStringSubmatchIndex(content, -1) {
		resourceName := content[m[2]:m[3]]
		block := content[m[4]:m[5]]
		line := strings.Count(content[:m[0]], "\n") + 1

		name := extractAttr(block, "name")
		if name == "" {
			name = resourceName
		}
		chart := extractAttr(block, "chart")
		chartVersion := extractAttr(block, "version")
		if chart == "" || chartVersion == "" {
			continue
		}
		namespace := extractAttr(block, "namespace")
		if namespace == "" {
			namespace = "default"
		}

		releases = append(releases, Release{
			Name:           name,
			Chart:          chart,
			Repository:     extractAttr(block, "repository"),
			CurrentVersion: chartVersion,
			Namespace:      namespace,
			SourceFile:     sourceFile,
			SourceLine:     line,
		})
	}
	return releases
}

// extractAttr pulls a scalar attribute out of a Terraform block body.
// Quoted literals win; bare tokens are accepted unless they reference
// variables or data sources.
func extractAttr(block, attr string) string {
	quoted := regexp.MustCompile(`\b` + attr + `\s*=\s*"([^"]*)"`)
	if m := quoted.FindStringSubmatch(block); m != nil {
		return m[1]
	}
	bare := regexp.MustCompile(`\b` + attr + `\s*=\s*(\S+)`)
	if m := bare.FindStringSubmatch(block); m != nil {
		v := m[1]
		if strings.HasPrefix(v, "var.") || strings.HasPrefix(v, "local.") || strings.HasPrefix(v, "data.") {
			return ""
		}
		return v
	}
	return ""
}
