package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"hlsched/internal/version"
)

// newRootCmd builds the command tree. Tests build a fresh one per case so
// that flag values do not leak between them.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hlsched",
		Short: "Scheduling-language middle-end",
		Long: `hlsched lowers scheduling functions to control-flow graphs in SSA form
and deduces their value, timeline and spatial quotient tags.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newCheckCmd())
	root.AddCommand(newCFGCmd())
	root.AddCommand(newTagsCmd())
	root.AddCommand(newVersionCmd())

	flags := root.PersistentFlags()
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.String("format", "pretty", "diagnostics format (pretty|json)")
	flags.String("progress", "off", "show stage progress (auto|view|log|off)")
	flags.Bool("timings", false, "report per-stage timings")
	flags.Int("jobs", 0, "functions compiled in parallel (0 uses the config or GOMAXPROCS)")
	flags.Int("max-diagnostics", 0, "maximum number of diagnostics per function (0 uses the config)")
	flags.Bool("no-cache", false, "ignore the on-disk result cache")
	flags.StringSlice("skip", nil, "quotient sorts to leave undeduced (value|timeline|spatial)")
	flags.String("timeline-merge", "", "timeline merge mismatches (error|warn)")
	flags.String("trace", "", "trace output file (- for stderr)")
	flags.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	flags.String("trace-mode", "stream", "trace storage (stream|ring|both)")
	flags.String("trace-format", "auto", "trace format (auto|text|ndjson)")
	flags.String("cpuprofile", "", "write a CPU profile to this file")
	flags.String("memprofile", "", "write a heap profile to this file")
	flags.String("exectrace", "", "write a runtime execution trace to this file")
	return root
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		if err != errFailed {
			root.PrintErrln("error:", err)
		}
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
