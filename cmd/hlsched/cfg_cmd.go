package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCFGCmd() *cobra.Command {
	var funcs []string
	cmd := &cobra.Command{
		Use:   "cfg <program.yaml>",
		Short: "Print the deformed control-flow graph of each function",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := compile(cmd, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range c.selected(funcs) {
				if r.Graph == nil {
					continue
				}
				fmt.Fprintf(out, "func %s:\n", r.Func)
				if err := r.Graph.Dump(out); err != nil {
					return err
				}
				fmt.Fprintln(out)
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
