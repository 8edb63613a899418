package main

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/backlogjudge/backlogjudge/internal/webserver"
)

func newServeCommand() *cobra.Command {
	var overridesPath string
	var port int
	var allowedOrigins []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the evaluation HTTP service",
		Long: `Start the evaluation HTTP service.

Endpoints:
  POST /api/v1/evaluate  Comprehensive weighted evaluation
  POST /api/v1/validate  Binary template-compliance check
  GET  /api/v1/metrics   Active metric catalog
  GET  /health           Health check

The service is stateless: every request is evaluated from scratch and
nothing is persisted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			orch, cfg, err := buildOrchestrator(ctx, overridesPath)
			if err != nil {
				return err
			}
			if port == 0 {
				port = cfg.Port
			}

			srv, err := webserver.New(webserver.Config{
				Port:           port,
				Service:        orch,
				Model:          cfg.Model,
				AllowedOrigins: allowedOrigins,
				Logger:         slog.Default(),
			})
			if err != nil {
				return err
			}
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&overridesPath, "overrides", "", "YAML file with per-metric weight/threshold overrides")
	cmd.Flags().IntVar(&port, "port", 0, "Port to listen on (default: configuration)")
	cmd.Flags().StringSliceVar(&allowedOrigins, "cors-origin", nil, "Allowed CORS origins (repeatable)")

	return cmd
}
