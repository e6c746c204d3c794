package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/prawko/prawko/internal/netcache"
	"github.com/prawko/prawko/internal/offline"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve content and media through the offline cache over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.ListenAddr = addr
		}
		e, err := openEnv(cmd, cfg, nil)
		if err != nil {
			return err
		}
		defer e.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		go offline.NewReconciler(e.offline, cfg.ReconcileInterval, e.log).Run(ctx)

		srv := &http.Server{
			Addr: cfg.ListenAddr,
			Handler: netcache.NewServer(e.worker, netcache.ServerOptions{
				AllowedOrigins: cfg.AllowedOrigins,
				Log:            e.log,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			e.log.Info().Str("addr", srv.Addr).Str("origin", cfg.DataURL).Msg("serving")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

		e.log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			e.log.Error().Err(err).Msg("http shutdown")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides PRAWKO_LISTEN_ADDR)")
}
