package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"hlsched/internal/diag"
	"hlsched/internal/source"
)

type palette struct {
	sev    map[diag.Severity]func(a ...any) string
	bold   func(a ...any) string
	gutter func(a ...any) string
}

func paint(enabled bool, attrs ...color.Attribute) func(a ...any) string {
	c := color.New(attrs...)
	if enabled {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.SprintFunc()
}

func newPalette(enabled bool) palette {
	return palette{
		sev: map[diag.Severity]func(a ...any) string{
			diag.SevError:   paint(enabled, color.FgRed, color.Bold),
			diag.SevWarning: paint(enabled, color.FgYellow, color.Bold),
			diag.SevInfo:    paint(enabled, color.FgCyan),
		},
		bold:   paint(enabled, color.Bold),
		gutter: paint(enabled, color.FgBlue),
	}
}

// Pretty writes bag in a human-readable form. It walks bag.Items() in order,
// so call bag.Sort() first for a stable listing. Each diagnostic prints as
//
//	<path>:<line>:<col>: <SEV> <CODE>: <message>
//
// followed by the source line with the span underlined as ^~~~ and, with
// ShowNotes, one line per note.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	if bag == nil {
		return
	}
	p := newPalette(opts.Color)
	for _, d := range bag.Items() {
		sev := p.sev[d.Severity]
		if sev == nil {
			sev = fmt.Sprint
		}
		loc := location(fs, d.Primary, opts)
		if loc != "" {
			loc += ": "
		}
		fmt.Fprintf(w, "%s%s %s: %s\n", loc, sev(d.Severity.String()), p.bold(d.Code.ID()), d.Message)
		if loc != "" {
			snippet(w, fs, d.Primary, opts.Context, p, sev)
		}
		if opts.ShowNotes {
			for _, n := range d.Notes {
				nloc := location(fs, n.Span, opts)
				if nloc != "" {
					nloc += ": "
				}
				fmt.Fprintf(w, "  %s %s%s\n", p.bold("note:"), nloc, n.Msg)
			}
		}
	}
}

// location is empty for synthesized diagnostics.
func location(fs *source.FileSet, sp source.Span, opts PrettyOpts) string {
	if fs == nil || sp == source.NoSpan {
		return ""
	}
	f := fs.Get(sp.File)
	if f == nil {
		return ""
	}
	start, _ := fs.Resolve(sp)
	return fmt.Sprintf("%s:%d:%d", formatPath(f, opts.PathMode, opts.BaseDir), start.Line, start.Col)
}

func snippet(w io.Writer, fs *source.FileSet, sp source.Span, context int, p palette, mark func(a ...any) string) {
	f := fs.Get(sp.File)
	start, end := fs.Resolve(sp)
	first := start.Line
	if context > 0 && uint32(context) < first {
		first -= uint32(context)
	} else if context > 0 {
		first = 1
	}
	width := len(fmt.Sprint(start.Line))
	for n := first; n <= start.Line; n++ {
		fmt.Fprintf(w, " %s %s\n", p.gutter(fmt.Sprintf("%*d |", width, n)), f.Line(n))
	}

	line := f.Line(start.Line)
	from := min(int(start.Col)-1, len(line))
	to := len(line)
	if end.Line == start.Line {
		to = min(int(end.Col)-1, len(line))
	}
	to = max(to, from)
	var pad strings.Builder
	for _, r := range line[:from] {
		if r == '\t' {
			pad.WriteRune('\t')
			continue
		}
		pad.WriteString(strings.Repeat(" ", runewidth.RuneWidth(r)))
	}
	n := max(1, runewidth.StringWidth(line[from:to]))
	underline := "^" + strings.Repeat("~", n-1)
	fmt.Fprintf(w, " %s %s%s\n", p.gutter(strings.Repeat(" ", width)+" |"), pad.String(), mark(underline))
}
