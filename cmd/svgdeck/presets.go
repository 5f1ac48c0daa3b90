package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"svgdeck/internal/deck/canvas"
	"svgdeck/internal/deck/slidexml"
)

func newPresetsCommand(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List canvas presets and transition effects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cli.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, cli.styles.bold("NAME")+"\tSIZE\tVIEWBOX\tDESCRIPTION")
			for _, p := range cli.presets.List() {
				name := p.Name
				if name == canvas.DefaultPreset {
					name += " (default)"
				}
				fmt.Fprintf(tw, "%s\t%dx%d\t%s\t%s\n", name, p.Width, p.Height, p.ViewBox(), p.DisplayName)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			fmt.Fprintln(cli.stdout)
			fmt.Fprintln(cli.stdout, cli.styles.bold("Transitions:"))
			for _, name := range slidexml.Effects() {
				fmt.Fprintf(cli.stdout, "  %-10s %s\n", name, slidexml.EffectDisplayName(name))
			}
			return nil
		},
	}
}
