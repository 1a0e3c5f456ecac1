package main

import (
	"fmt"

	"dexview/internal/tui"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"
)

func newBrowseCommand(a *app) *cobra.Command {
	var f sessionOptions
	cmd := &cobra.Command{
		Use:   "browse <file>",
		Short: "Browse a file in the terminal",
		Long: `Open a terminal browser with the index on the left and the rendered node
on the right.

Keys:
  up/down, j/k      move
  enter/right, l    expand
  left, h           collapse
  tab               switch between tree and code pane
  pgup/pgdn         scroll
  /                 search (enter keeps the query, esc clears it)
  w                 next writer
  q, esc            quit`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(args[0], f)
			if err != nil {
				return err
			}
			defer s.Close()

			screen, err := tcell.NewScreen()
			if err != nil {
				return fmt.Errorf("terminal: %w", err)
			}
			if err := screen.Init(); err != nil {
				return fmt.Errorf("terminal: %w", err)
			}
			defer screen.Fini()

			return tui.New(screen, s, tui.PaletteFrom(a.cfg.Theme)).Run(cmd.Context())
		},
	}
	f.register(cmd)
	return cmd
}
