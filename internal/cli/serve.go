package cli

import (
	"github.com/spf13/cobra"

	"github.com/testforge/e2ekit/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		dir  string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve generated reports, health and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = a.cfg.Paths.Reports
			}
			cfg := a.cfg.Server
			if port > 0 {
				cfg.Port = port
			}

			handler := server.NewRouter(server.RouterConfig{
				ReportsDir:     dir,
				Metrics:        a.metrics,
				Breakers:       a.breakers,
				AllowedOrigins: cfg.CORSAllowedOrigins,
				Logger:         a.logger,
				Version:        a.version,
			})

			a.out.Header("Report server")
			a.out.Bullet("Reports: %s", dir)
			a.out.Success("Listening on http://%s", cfg.Addr())
			return server.New(cfg, handler, a.logger).Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Reports directory (default REPORTS_DIR)")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (default SERVER_PORT)")
	return cmd
}
