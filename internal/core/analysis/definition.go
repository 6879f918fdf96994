package analysis

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Canonical analysis names. The pipeline runs exactly this fixed set; there
// is no general-purpose query planner behind them.
const (
	RevenueByCategory  = "revenue_by_category"
	TopSpenders        = "top_spenders"
	BoughtTogether     = "bought_together"
	EngagementVsSpend  = "engagement_vs_spend"
	EngagementSegments = "engagement_segments"
)

// Names lists all canonical analyses in their fixed serving order.
var Names = []string{
	RevenueByCategory,
	TopSpenders,
	BoughtTogether,
	EngagementVsSpend,
	EngagementSegments,
}

// Known reports whether name is a canonical analysis.
func Known(name string) bool {
	for _, n := range Names {
		if n == name {
			return true
		}
	}
	return false
}

// Definition is the tunable configuration of one analysis. Definitions are
// loaded at startup from YAML files and fingerprinted so a result can state
// exactly which configuration produced it.
type Definition struct {
	Name    string `yaml:"name"`
	Enabled bool   `yaml:"enabled"`

	// TopK bounds top_spenders output.
	TopK int `yaml:"top_k"`

	// MaxPairs bounds bought_together output.
	MaxPairs int `yaml:"max_pairs"`

	// MaxBasketSize caps distinct products per basket before a basket is
	// skipped as corrupt.
	MaxBasketSize int `yaml:"max_basket_size"`

	// SegmentLow/SegmentHigh split the engagement score into the low, medium
	// and high segments of engagement_segments.
	SegmentLow  float64 `yaml:"segment_low"`
	SegmentHigh float64 `yaml:"segment_high"`

	// Fingerprint is the SHA-256 of the raw YAML file, or "default" for
	// built-in definitions. Computed at load time.
	Fingerprint string `yaml:"-"`
}

// Default returns the built-in definition for an analysis name.
func Default(name string) Definition {
	return Definition{
		Name:          name,
		Enabled:       true,
		TopK:          10,
		MaxPairs:      50,
		MaxBasketSize: 500,
		SegmentLow:    5,
		SegmentHigh:   20,
		Fingerprint:   "default",
	}
}

// Validate checks a loaded definition.
func (d Definition) Validate() error {
	if !Known(d.Name) {
		return fmt.Errorf("unknown analysis %q", d.Name)
	}
	if d.TopK <= 0 {
		return fmt.Errorf("analysis %q: top_k must be > 0", d.Name)
	}
	if d.MaxPairs <= 0 {
		return fmt.Errorf("analysis %q: max_pairs must be > 0", d.Name)
	}
	if d.MaxBasketSize <= 0 {
		return fmt.Errorf("analysis %q: max_basket_size must be > 0", d.Name)
	}
	if d.SegmentLow < 0 || d.SegmentHigh <= d.SegmentLow {
		return fmt.Errorf("analysis %q: segment thresholds must satisfy 0 <= low < high", d.Name)
	}
	return nil
}

// Repository resolves the definition for each canonical analysis.
type Repository interface {
	// Get returns the definition for name. Unknown names fail; known names
	// without an override resolve to Default(name).
	Get(name string) (Definition, error)

	// All returns the definitions of all canonical analyses in serving order.
	All() []Definition
}

// FileSystemRepository loads definition overrides from *.yaml files in a
// directory. Each file contains exactly one definition at the top level.
// Definitions are loaded once at startup and cached in memory — no hot
// reload. A missing directory is valid and means "all defaults".
type FileSystemRepository struct {
	dir  string
	defs map[string]Definition
}

// NewFileSystemRepository creates a repository and eagerly loads every
// override from dir. Returns an error if any file is malformed or invalid.
func NewFileSystemRepository(dir string) (*FileSystemRepository, error) {
	repo := &FileSystemRepository{
		dir:  dir,
		defs: make(map[string]Definition),
	}
	if err := repo.load(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *FileSystemRepository) load() error {
	info, err := os.Stat(r.dir)
	if os.IsNotExist(err) {
		return nil // no overrides configured
	}
	if err != nil {
		return fmt.Errorf("analysis definition dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("analysis definition path %q is not a directory", r.dir)
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("reading analysis definition dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}

		path := filepath.Join(r.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading analysis definition %q: %w", path, err)
		}

		// Start from defaults so a file only has to name the params it changes.
		def := Default("")
		if err := yaml.Unmarshal(data, &def); err != nil {
			return fmt.Errorf("parsing analysis definition %q: %w", path, err)
		}
		def.Fingerprint = fmt.Sprintf("%x", sha256.Sum256(data))

		if err := def.Validate(); err != nil {
			return fmt.Errorf("analysis definition %q: %w", path, err)
		}
		if _, dup := r.defs[def.Name]; dup {
			return fmt.Errorf("duplicate analysis definition %q in %q", def.Name, path)
		}
		r.defs[def.Name] = def
	}

	return nil
}

// Get implements Repository.
func (r *FileSystemRepository) Get(name string) (Definition, error) {
	if !Known(name) {
		return Definition{}, fmt.Errorf("unknown analysis %q", name)
	}
	if def, ok := r.defs[name]; ok {
		return def, nil
	}
	return Default(name), nil
}

// All implements Repository.
func (r *FileSystemRepository) All() []Definition {
	out := make([]Definition, 0, len(Names))
	for _, name := range Names {
		def, _ := r.Get(name)
		out = append(out, def)
	}
	return out
}
