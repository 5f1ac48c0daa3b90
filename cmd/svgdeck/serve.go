package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"svgdeck/internal/logging"
	serverhttp "svgdeck/internal/server/http"
)

func newServeCommand(cli *CLI) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the deck build HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := cli.cfg.Server
			if addr != "" {
				cfg.Addr = addr
			}
			r, backend, err := cli.rasterizer("")
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := serverhttp.NewServer(cfg, serverhttp.Deps{
				Builder:  cli.newBuilder(r),
				Fs:       cli.fs,
				WorkDir:  cli.cfg.Build.WorkDir,
				Defaults: cli.cfg.Build,
				Backend:  string(backend),
				Metrics:  cli.metrics,
				Tracer:   cli.tracer,
				Logger:   logging.NewComponentLogger("http"),
			})
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8080)")
	return cmd
}
