// Package knowledge holds the curated upgrade knowledge base: known-safe
// image version mappings, per-chart release histories and breaking-change
// notes. Defaults ship embedded in the binary and can be overlaid with TOML
// files from a local directory.
package knowledge

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/autopatch-io/autopatch/pkg/version"
)

//go:embed defaults/*.toml
var defaultFiles embed.FS

var (
	defaultOnce sync.Once
	defaultBase *Base
	defaultErr  error
)

// BreakingChange describes a known breaking change introduced at a specific
// chart version.
type BreakingChange struct {
	Version string   `toml:"version"`
	Risk    string   `toml:"risk"`
	Notes   string   `toml:"notes"`
	Items   []string `toml:"items"`
}

// ChartKnowledge is everything the knowledge base records about one chart.
type ChartKnowledge struct {
	// Releases lists known released chart versions, oldest first.
	Releases []string `toml:"releases"`
	// Changes lists known breaking changes by introducing version.
	Changes []BreakingChange `toml:"changes"`
}

// Base is an immutable knowledge base snapshot. It is loaded once at startup
// and passed by reference to the resolver and roadmap builder; nothing
// mutates it after Load returns.
type Base struct {
	SafeVersions map[string]map[string]string
	Charts       map[string]ChartKnowledge
}

type document struct {
	Images map[string]map[string]string `toml:"images"`
	Charts map[string]ChartKnowledge    `toml:"charts"`
}

// Default returns the embedded knowledge base, loading it on first use.
func Default() (*Base, error) {
	defaultOnce.Do(func() {
		b := newBase()
		defaultErr = fs.WalkDir(defaultFiles, ".", func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".toml") {
				return nil
			}
			data, err := defaultFiles.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			return b.merge(path, data)
		})
		defaultBase = b
	})
	return defaultBase, defaultErr
}

// Load returns the embedded defaults overlaid with every *.toml file found
// in dir. An empty dir name returns the defaults unchanged.
func Load(dir string) (*Base, error) {
	def, err := Default()
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return def, nil
	}

	b := newBase()
	b.copyFrom(def)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("knowledge dir %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".toml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if err := b.merge(path, data); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func newBase() *Base {
	return &Base{
		SafeVersions: make(map[string]map[string]string),
		Charts:       make(map[string]ChartKnowledge),
	}
}

func (b *Base) copyFrom(other *Base) {
	for image, mapping := range other.SafeVersions {
		dst := make(map[string]string, len(mapping))
		for from, to := range mapping {
			dst[from] = to
		}
		b.SafeVersions[image] = dst
	}
	for chart, ck := range other.Charts {
		b.Charts[chart] = ck
	}
}

func (b *Base) merge(path string, data []byte) error {
	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	for image, mapping := range doc.Images {
		dst := b.SafeVersions[image]
		if dst == nil {
			dst = make(map[string]string, len(mapping))
			b.SafeVersions[image] = dst
		}
		for from, to := range mapping {
			dst[from] = to
		}
	}
	for chart, ck := range doc.Charts {
		// Later files replace a chart wholesale rather than splicing
		// release lists together.
		b.Charts[chart] = ck
	}
	return nil
}

// SafeVersion looks up the curated safe target for an image at the given
// installed version. The image name may carry a registry or repository path;
// only the final path segment identifies it in the table.
func (b *Base) SafeVersion(image, installed string) (string, bool) {
	mapping, ok := b.SafeVersions[BaseName(image)]
	if !ok {
		return "", false
	}
	target, ok := mapping[installed]
	return target, ok
}

// KnownReleases returns the parsed known release history for a chart, sorted
// ascending. Entries that fail to parse are dropped.
func (b *Base) KnownReleases(chart string) []version.Version {
	ck, ok := b.Charts[chart]
	if !ok {
		return nil
	}
	out := make([]version.Version, 0, len(ck.Releases))
	for _, raw := range ck.Releases {
		v, err := version.Parse(raw)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return version.Less(out[i], out[j]) })
	return out
}

// ChangesBetween returns the breaking changes introduced after from and up
// to and including to, in the order they were recorded.
func (b *Base) ChangesBetween(chart string, from, to version.Version) []BreakingChange {
	ck, ok := b.Charts[chart]
	if !ok {
		return nil
	}
	var out []BreakingChange
	for _, bc := range ck.Changes {
		v, err := version.Parse(bc.Version)
		if err != nil {
			continue
		}
		if version.Less(from, v) && version.Compare(v, to) <= 0 {
			out = append(out, bc)
		}
	}
	return out
}

// BaseName strips any registry or repository prefix and tag suffix from an
// image reference, e.g. "docker.io/library/nginx:1.23" -> "nginx".
func BaseName(image string) string {
	name := image
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, ":"); i >= 0 {
		name = name[:i]
	}
	return name
}
