package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newPresetsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(root)
			if err != nil {
				return err
			}
			defer s.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSOURCE")
			for _, file := range s.catalog.Files() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", file.Preset.ID, file.Preset.DisplayName(), file.Path)
			}
			return tw.Flush()
		},
	}
}
