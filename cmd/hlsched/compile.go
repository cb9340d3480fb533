package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"hlsched/internal/diag"
	"hlsched/internal/diagfmt"
	"hlsched/internal/driver"
	"hlsched/internal/prof"
	"hlsched/internal/source"
)

// compilation is one run of the pipeline over an input document.
type compilation struct {
	path    string
	set     *settings
	fs      *source.FileSet
	prog    *driver.Program // nil when the document did not load
	results []*driver.Result
	bag     *diag.Bag
}

func compile(cmd *cobra.Command, path string) (*compilation, error) {
	set, err := loadSettings(cmd, path)
	if err != nil {
		return nil, err
	}
	cleanup, err := setupTracing(cmd)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	stopProfiling, err := startProfiling(cmd)
	if err != nil {
		return nil, err
	}
	defer stopProfiling()

	c := &compilation{
		path: path,
		set:  set,
		fs:   source.NewFileSet(),
		bag:  diag.NewBag(set.cfg.Output.MaxDiagnostics),
	}
	prog, err := driver.Load(c.fs, path)
	if err != nil {
		if !driver.ReportLoadErrors(c.bag, err) {
			return nil, err
		}
		return c, nil
	}
	c.prog = prog

	ctx := cmd.Context()
	switch set.progress {
	case progressView:
		c.results, err = runWithUI(ctx, "hlsched "+cmd.Name()+" "+path, prog, set.opts)
	case progressLog:
		opts := set.opts
		opts.Observer = stageLogger(cmd.ErrOrStderr())
		c.results, err = driver.Run(ctx, prog, opts)
	default:
		c.results, err = driver.Run(ctx, prog, set.opts)
	}
	if err != nil {
		return nil, err
	}
	for _, r := range c.results {
		c.bag.Merge(r.Bag)
	}
	if set.timings {
		driver.AppendTimings(c.bag, driver.Timings(path, c.results))
	}
	return c, nil
}

func startProfiling(cmd *cobra.Command) (func(), error) {
	var opts prof.Options
	opts.CPU, _ = cmd.Flags().GetString("cpuprofile")
	opts.Mem, _ = cmd.Flags().GetString("memprofile")
	opts.Trace, _ = cmd.Flags().GetString("exectrace")
	if !opts.Enabled() {
		return func() {}, nil
	}
	session, err := prof.Start(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start profiling: %w", err)
	}
	return func() {
		if err := session.Stop(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "prof: %v\n", err)
		}
	}, nil
}

// failed reports whether any error was found.
func (c *compilation) failed() bool {
	return c.bag.HasErrors()
}

// selected returns the results of the named functions, or all of them.
func (c *compilation) selected(names []string) []*driver.Result {
	if len(names) == 0 {
		return c.results
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var res []*driver.Result
	for _, r := range c.results {
		if want[r.Func] {
			res = append(res, r)
		}
	}
	return res
}

// printDiagnostics writes the collected diagnostics in the configured
// format.
func (c *compilation) printDiagnostics(w io.Writer) error {
	c.bag.Sort()
	if c.set.format == "json" {
		return diagfmt.JSON(w, c.bag, c.fs, diagfmt.JSONOpts{
			IncludePositions: true,
			PathMode:         diagfmt.PathModeRelative,
			Max:              c.bag.Len(),
			IncludeNotes:     true,
		})
	}
	diagfmt.Pretty(w, c.bag, c.fs, diagfmt.PrettyOpts{
		Color:     c.set.color,
		Context:   1,
		PathMode:  diagfmt.PathModeAuto,
		ShowNotes: true,
	})
	return nil
}
