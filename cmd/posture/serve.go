package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/posture/internal/server"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the per-session analysis API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(flags)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			rt, err := newStack(ctx, cfg, flags)
			if err != nil {
				return err
			}
			defer rt.Close()

			go rt.service.Run(ctx, cfg.Session.SweepInterval, cfg.Session.IdleTimeout)

			staticDir := cfg.Server.StaticDir
			if staticDir == "" {
				staticDir = findWebDir()
			}

			srv := server.New(server.Config{
				StaticDir:      staticDir,
				Service:        rt.service,
				MaxUploadBytes: cfg.Server.MaxUploadBytes,
			})
			return srv.ListenAndServe(ctx, cfg.Server.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "override server.addr")

	return cmd
}

// serveInBackground runs srv until ctx is done and reports how it stopped.
func serveInBackground(ctx context.Context, srv *server.Server, addr string) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx, addr)
	}()
	return errCh
}
