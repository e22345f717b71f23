package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mproc/internal/config"
	"mproc/internal/server"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the mproc API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}

			logger := slog.Default()

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}
			if err := ensureNoServer(cmd.Context(), cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			hub := server.NewHub(logger)
			go hub.Run(ctx)

			logger.Info("opening data directory", "path", cfg.DataDir)
			ws, err := openWorkspace(ctx, cfg, hub)
			if err != nil {
				return err
			}
			defer ws.Close()

			srv := server.New(ws.repo, hub, server.Options{
				Addr:           addr,
				DataDir:        cfg.DataDir,
				AllowedOrigins: cfg.CORSAllowedOrigins,
				MaxUploadBytes: cfg.Attachments.MaxUploadBytes,
			}, logger)
			return srv.ListenAndServe(ctx)
		},
	}
}
