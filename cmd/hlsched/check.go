package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <program.yaml>",
		Short: "Run every stage and report diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := compile(cmd, args[0])
			if err != nil {
				return err
			}
			if err := c.printDiagnostics(cmd.OutOrStdout()); err != nil {
				return err
			}
			if c.failed() {
				return errFailed
			}
			if c.set.format == "pretty" && c.bag.Len() == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d functions ok\n", args[0], len(c.results))
			}
			return nil
		},
	}
}
