package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newWritersCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "writers",
		Short: "List the available writers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry()
			if err != nil {
				return err
			}
			for _, name := range reg.Names() {
				_, rules, err := reg.Activate(name)
				if err != nil {
					return err
				}
				mark := " "
				if name == a.cfg.Writer {
					mark = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-8s %d highlight rules\n", mark, name, len(rules))
			}
			return nil
		},
	}
}
