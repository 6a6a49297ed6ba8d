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

// Edit is one image reference rewrite to apply across manifests.
type Edit struct {
	// OldRef and NewRef are full image references, e.g. "nginx:1.23.1".
	OldRef string
	NewRef string
}

// RewriteImageRefs walks root for YAML manifests and replaces occurrences
// of the edit's image reference, both in `image:` lines and in split
// repository/tag form (`tag:` lines carrying just the version). It returns
// the changed file paths relative to root, sorted.
func RewriteImageRefs(root string, edits []Edit) ([]string, error) {
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
		if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("gitops: read %s: %w", path, err)
		}

		content := string(data)
		modified := false
		for _, e := range edits {
			next, ok := applyEdit(content, e)
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

func applyEdit(content string, e Edit) (string, bool) {
	oldTag := tagOf(e.OldRef)
	newTag := tagOf(e.NewRef)

	patterns := []struct {
		re          *regexp.Regexp
		replacement string
	}{
		{
			re:          regexp.MustCompile(`(image:\s*["']?)` + regexp.QuoteMeta(e.OldRef) + `(["']?)`),
			replacement: "${1}" + e.NewRef + "${2}",
		},
		{
			re:          regexp.MustCompile(`(?m)(tag:\s*["']?)` + regexp.QuoteMeta(oldTag) + `(["']?\s*)$`),
			replacement: "${1}" + newTag + "${2}",
		},
	}

	modified := false
	for _, p := range patterns {
		if p.re.MatchString(content) {
			content = p.re.ReplaceAllString(content, p.replacement)
			modified = true
		}
	}
	return content, modified
}

func tagOf(ref string) string {
	if i := strings.LastIndex(ref, ":"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}
