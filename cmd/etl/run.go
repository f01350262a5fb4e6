package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/ecem-data-etl/internal/observability"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [steps...]",
		Short: "Run all preprocessing steps, or only the named ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			p, closeFn, err := a.newPipeline()
			if err != nil {
				return err
			}
			defer closeFn()

			manifest, runErr := p.Run(cmd.Context(), args...)
			if a.cfg.MetricsTextfile != "" {
				if err := observability.WriteTextfile(a.cfg.MetricsTextfile); err != nil {
					a.logger.Error("metrics textfile", "error", err)
				}
			}
			if runErr != nil {
				return runErr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d artifacts published to %s\n", len(manifest.Artifacts), a.cfg.AppDataDir)
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the preprocessing steps in run order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			p, closeFn, err := a.newPipeline()
			if err != nil {
				return err
			}
			defer closeFn()

			for _, name := range p.StepNames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
