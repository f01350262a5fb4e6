package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/ecem-data-etl/internal/adapter/http"
	"github.com/couchcryptid/ecem-data-etl/internal/adapter/fsstore"
	"github.com/couchcryptid/ecem-data-etl/internal/pipeline"
)

func newServeCmd() *cobra.Command {
	var runFirst bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web app with health, readiness and metrics endpoints",
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

			ctx := cmd.Context()
			if runFirst {
				if _, err := p.Run(ctx); err != nil {
					return err
				}
			}

			ready := fsstore.ReadinessCheck{Dir: a.cfg.AppDataDir, Names: expectedArtifacts(p)}
			srv := httpadapter.NewServer(a.cfg.HTTPAddr, a.cfg.WebRoot, ready, a.logger)

			errCh := make(chan error, 1)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return err
				}
			case <-ctx.Done():
			}
			a.logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Error("http server shutdown error", "error", err)
			}
			a.logger.Info("shutdown complete")
			return nil
		},
	}
	cmd.Flags().BoolVar(&runFirst, "run", false, "Run the full pipeline before serving")
	return cmd
}

// expectedArtifacts lists the files a complete run publishes.
func expectedArtifacts(p *pipeline.Pipeline) []string {
	return append(p.OutputNames(), fsstore.ManifestName)
}
