package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hlsched/internal/config"
	"hlsched/internal/quot"
)

func write(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, config.FileName)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, `
[pipeline]
jobs = 3
cache = true

[deduce]
spatial = false
timeline_merge = "warn"

[output]
format = "json"
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Pipeline.Jobs != 3 || !cfg.Pipeline.Cache {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
	if want := filepath.Join(dir, config.DefaultCacheDir); cfg.Pipeline.CacheDir != want {
		t.Errorf("cache dir = %q, want %q", cfg.Pipeline.CacheDir, want)
	}
	if !cfg.Deduce.Value || !cfg.Deduce.Timeline || cfg.Deduce.Spatial {
		t.Errorf("deduce = %+v", cfg.Deduce)
	}
	if cfg.MergePolicy() != quot.MergeWarn {
		t.Errorf("merge policy = %v", cfg.MergePolicy())
	}
	if cfg.Output.Format != "json" || cfg.Output.Color != "auto" {
		t.Errorf("output = %+v", cfg.Output)
	}
	if cfg.Path != path {
		t.Errorf("path = %q", cfg.Path)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		frag string
	}{
		{"unknown key", "[pipeline]\nworkers = 2\n", "unknown keys: pipeline.workers"},
		{"bad jobs", "[pipeline]\njobs = 0\n", "jobs must be positive"},
		{"bad merge", "[deduce]\ntimeline_merge = \"ignore\"\n", "timeline_merge"},
		{"bad color", "[output]\ncolor = \"sometimes\"\n", "color must be"},
		{"syntax", "[pipeline\n", "failed to parse TOML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := write(t, t.TempDir(), tt.body)
			_, err := config.Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.frag) {
				t.Fatalf("Load error = %v, want mention of %q", err, tt.frag)
			}
		})
	}
}

func TestDiscoverWalksUp(t *testing.T) {
	root := t.TempDir()
	write(t, root, "[output]\nmax_diagnostics = 7\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Discover(nested)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if cfg.Output.MaxDiagnostics != 7 {
		t.Errorf("max diagnostics = %d, want 7", cfg.Output.MaxDiagnostics)
	}
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.Path != "" {
		t.Errorf("defaults have a path: %q", cfg.Path)
	}
}
