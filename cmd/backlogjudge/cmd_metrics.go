package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/backlogjudge/backlogjudge/internal/config"
	"github.com/backlogjudge/backlogjudge/internal/registry"
)

func newMetricsCommand() *cobra.Command {
	var overridesPath string
	var includeLibrary bool

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Print the active metric catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := registry.Comprehensive()
			if overridesPath != "" {
				var err error
				reg, err = config.ApplyOverrides(reg, overridesPath)
				if err != nil {
					return err
				}
			}
			if includeLibrary {
				var err error
				reg, err = registry.Merge(reg, registry.Library())
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-26s %-7s %-10s %-15s %s\n", "METRIC", "WEIGHT", "THRESHOLD", "KIND", "DESCRIPTION")
			for _, def := range reg.Definitions() {
				fmt.Fprintf(out, "%-26s %-7.2f %-10.2f %-15s %s\n",
					def.ID, def.Weight, def.Threshold, def.Kind, def.Description)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&overridesPath, "overrides", "", "YAML file with per-metric weight/threshold overrides")
	cmd.Flags().BoolVar(&includeLibrary, "library", false, "Include the automated library metrics")

	return cmd
}
