// Package config reads hlsched.toml, the optional per-directory settings
// file. Command-line flags override whatever it sets.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"

	"hlsched/internal/quot"
)

const FileName = "hlsched.toml"

// DefaultCacheDir is relative to the directory holding the settings file,
// or to the working directory without one.
const DefaultCacheDir = ".hlsched-cache"

type Config struct {
	// Path is the file the settings came from, empty for defaults.
	Path     string   `toml:"-"`
	Pipeline Pipeline `toml:"pipeline"`
	Deduce   Deduce   `toml:"deduce"`
	Output   Output   `toml:"output"`
}

type Pipeline struct {
	Jobs     int    `toml:"jobs"`
	Cache    bool   `toml:"cache"`
	CacheDir string `toml:"cache_dir"`
}

// Deduce switches the quotient passes on and off.
type Deduce struct {
	Value         bool   `toml:"value"`
	Timeline      bool   `toml:"timeline"`
	Spatial       bool   `toml:"spatial"`
	TimelineMerge string `toml:"timeline_merge"`
}

type Output struct {
	Color          string `toml:"color"` // auto, on or off
	MaxDiagnostics int    `toml:"max_diagnostics"`
	Format         string `toml:"format"` // pretty or json
}

func Default() Config {
	return Config{
		Pipeline: Pipeline{Jobs: runtime.GOMAXPROCS(0), CacheDir: DefaultCacheDir},
		Deduce:   Deduce{Value: true, Timeline: true, Spatial: true, TimelineMerge: "error"},
		Output:   Output{Color: "auto", MaxDiagnostics: 100, Format: "pretty"},
	}
}

// Find walks up from startDir to locate hlsched.toml.
func Find(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Discover loads the settings file governing startDir, or the defaults
// when there is none.
func Discover(startDir string) (Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// Load decodes path over the defaults. Unknown keys are errors.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.Path = path
	if !meta.IsDefined("pipeline", "cache_dir") || !filepath.IsAbs(cfg.Pipeline.CacheDir) {
		cfg.Pipeline.CacheDir = filepath.Join(filepath.Dir(path), cfg.Pipeline.CacheDir)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every out-of-range setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Pipeline.Jobs < 1 {
		errs = append(errs, fmt.Errorf("[pipeline].jobs must be positive, got %d", c.Pipeline.Jobs))
	}
	if c.Pipeline.Cache && strings.TrimSpace(c.Pipeline.CacheDir) == "" {
		errs = append(errs, errors.New("[pipeline].cache_dir is empty"))
	}
	if _, err := quot.ParseMergePolicy(c.Deduce.TimelineMerge); err != nil {
		errs = append(errs, fmt.Errorf("[deduce].timeline_merge: %w", err))
	}
	switch c.Output.Color {
	case "auto", "on", "off":
	default:
		errs = append(errs, fmt.Errorf("[output].color must be auto, on or off, got %q", c.Output.Color))
	}
	switch c.Output.Format {
	case "pretty", "json":
	default:
		errs = append(errs, fmt.Errorf("[output].format must be pretty or json, got %q", c.Output.Format))
	}
	if c.Output.MaxDiagnostics < 0 {
		errs = append(errs, fmt.Errorf("[output].max_diagnostics must not be negative, got %d", c.Output.MaxDiagnostics))
	}
	return errors.Join(errs...)
}

// MergePolicy returns the parsed [deduce].timeline_merge.
func (c *Config) MergePolicy() quot.MergePolicy {
	p, err := quot.ParseMergePolicy(c.Deduce.TimelineMerge)
	if err != nil {
		return quot.MergeError
	}
	return p
}
