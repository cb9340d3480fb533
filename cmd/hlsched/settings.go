package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"hlsched/internal/config"
	"hlsched/internal/driver"
	"hlsched/internal/hir"
)

// errFailed ends a command whose diagnostics were already printed.
var errFailed = errors.New("compilation failed")

// settings is the configuration file overlaid with the command line.
type settings struct {
	cfg      config.Config
	format   string
	color    bool
	progress progressMode
	timings  bool
	opts     driver.Options
}

// loadSettings discovers hlsched.toml next to input and applies every flag
// the user set explicitly.
func loadSettings(cmd *cobra.Command, input string) (*settings, error) {
	cfg, err := config.Discover(filepath.Dir(input))
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()

	if flags.Changed("jobs") {
		cfg.Pipeline.Jobs, _ = flags.GetInt("jobs")
	}
	if flags.Changed("max-diagnostics") {
		cfg.Output.MaxDiagnostics, _ = flags.GetInt("max-diagnostics")
	}
	if flags.Changed("format") {
		cfg.Output.Format, _ = flags.GetString("format")
	}
	if flags.Changed("color") {
		cfg.Output.Color, _ = flags.GetString("color")
	}
	if flags.Changed("timeline-merge") {
		cfg.Deduce.TimelineMerge, _ = flags.GetString("timeline-merge")
	}
	if noCache, _ := flags.GetBool("no-cache"); noCache {
		cfg.Pipeline.Cache = false
	}
	skip, _ := flags.GetStringSlice("skip")
	for _, name := range skip {
		sort, err := hir.ParseSort(strings.TrimSpace(name))
		if err != nil {
			return nil, fmt.Errorf("--skip: %w", err)
		}
		switch sort {
		case hir.SortValue:
			cfg.Deduce.Value = false
		case hir.SortTimeline:
			cfg.Deduce.Timeline = false
		case hir.SortSpatial:
			cfg.Deduce.Spatial = false
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	progressFlag, _ := flags.GetString("progress")
	mode, err := readProgressMode(progressFlag)
	if err != nil {
		return nil, err
	}
	s := &settings{
		cfg:      cfg,
		format:   cfg.Output.Format,
		progress: mode.resolve(cfg.Output.Format, isTerminal(os.Stdout)),
	}
	s.timings, _ = flags.GetBool("timings")
	switch cfg.Output.Color {
	case "on":
		s.color = true
	case "auto":
		s.color = isTerminal(os.Stdout)
	}

	s.opts = driver.Options{
		Jobs:           cfg.Pipeline.Jobs,
		Merge:          cfg.MergePolicy(),
		MaxDiagnostics: cfg.Output.MaxDiagnostics,
	}
	s.opts.Skip[hir.SortValue] = !cfg.Deduce.Value
	s.opts.Skip[hir.SortTimeline] = !cfg.Deduce.Timeline
	s.opts.Skip[hir.SortSpatial] = !cfg.Deduce.Spatial
	if cfg.Pipeline.Cache {
		cache, err := driver.OpenCache(cfg.Pipeline.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open cache: %w", err)
		}
		s.opts.Cache = cache
	}
	return s, nil
}
