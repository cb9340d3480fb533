package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"hlsched/internal/driver"
	"hlsched/internal/hir"
)

func newTagsCmd() *cobra.Command {
	var funcs []string
	cmd := &cobra.Command{
		Use:   "tags <program.yaml>",
		Short: "Print the deduced parameter, result and event tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := compile(cmd, args[0])
			if err != nil {
				return err
			}
			for _, r := range c.selected(funcs) {
				writeTags(cmd.OutOrStdout(), r, c.set.color)
			}
			if err := c.printDiagnostics(cmd.ErrOrStderr()); err != nil {
				return err
			}
			if c.failed() {
				return errFailed
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&funcs, "func", nil, "only print these functions")
	return cmd
}

// writeTags prints one table per function:
//
//	func f
//	  param   a      input(a)  ?  ?
//	  result  _out0  node(f)  ?  ?
//	  event   bb1    in ?  out ?
func writeTags(w io.Writer, r *driver.Result, useColor bool) {
	head := color.New(color.Bold)
	dim := color.New(color.Faint)
	if useColor {
		head.EnableColor()
		dim.EnableColor()
	} else {
		head.DisableColor()
		dim.DisableColor()
	}

	var rows [][]string
	for _, d := range r.Params {
		rows = append(rows, tagRow("param", d))
	}
	for i, d := range r.Results {
		if d.Name == "" {
			d.Name = hir.RetName(i)
		}
		rows = append(rows, tagRow("result", d))
	}
	ids := make([]hir.BlockID, 0, len(r.Events))
	for id := range r.Events {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		ev := r.Events[id]
		rows = append(rows, []string{"event", id.String(), "in " + ev.In.String(), "out " + ev.Out.String()})
	}

	fmt.Fprintf(w, "%s\n", head.Sprint("func "+r.Func))
	if r.Cached {
		fmt.Fprintf(w, "  %s\n", dim.Sprint("(cached)"))
	}
	widths := columnWidths(rows)
	for _, row := range rows {
		var b strings.Builder
		b.WriteString("  ")
		for i, cell := range row {
			if i == len(row)-1 {
				b.WriteString(cell)
				break
			}
			b.WriteString(runewidth.FillRight(cell, widths[i]))
			b.WriteString("  ")
		}
		fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	}
}

func tagRow(kind string, d hir.Dest) []string {
	row := []string{kind, d.Name}
	for _, s := range hir.Sorts {
		row = append(row, d.Tag.At(s).String())
	}
	return row
}

func columnWidths(rows [][]string) []int {
	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}
	return widths
}
