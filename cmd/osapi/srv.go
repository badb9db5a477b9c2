package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"osapi/internal/config"
	"osapi/internal/server"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the osapi API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.Default().With("component", "server")

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}
			tokenTTL, err := cfg.TokenTTL()
			if err != nil {
				return err
			}

			logger.Info("opening database", "path", cfg.DBPath, "storage_root", cfg.StorageRoot)
			st, blobs, err := openLocal(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			srv := server.New(addr, st, cfg.PublicURL, logger, blobs)
			srv.ConfigureUploadPolicy(uploadPolicy(cfg))
			srv.ConfigureTokenTTL(tokenTTL)

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return srv.ListenAndServe(ctx)
		},
	}
}
