package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stockcast/internal/web"
)

func serveCmd() *cobra.Command {
	var port int
	var host string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			ctx, cancel := signalContext(nil)
			defer cancel()

			a := newApp(ctx, cfg)
			defer a.Close()

			return web.NewServer(cfg.Server, a.data, a.forecasts).
				WithMetrics(a.metrics).
				Run(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "HTTP port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "listen address")
	return cmd
}
