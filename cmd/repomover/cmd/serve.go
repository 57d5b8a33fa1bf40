package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	httphandler "github.com/ericfisherdev/repomover/internal/adapter/driving/http"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the transfer workflow as a JSON API",
	Long: `Starts an HTTP server exposing the transfer workflow under /api/v1.
The listen address defaults to REPOMOVER_LISTEN_ADDR.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		a, err := bootstrap(ctx, true)
		if err != nil {
			return err
		}
		defer a.close()

		addr := a.cfg.ListenAddr
		if serveAddr != "" {
			addr = serveAddr
		}

		apiHandler := httphandler.NewHandler(a.workflow, a.health, slog.Default())

		srv := &http.Server{
			Addr:              addr,
			Handler:           httphandler.NewServeMux(apiHandler, slog.Default()),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("http server starting", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		slog.Info("repomover started",
			"listen_addr", addr,
			"transfer_pacing", a.cfg.TransferPacing,
			"validation_debounce", a.cfg.ValidationDebounce,
		)

		select {
		case err := <-errCh:
			if err != nil {
				return err
			}
		case <-ctx.Done():
		}
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", "error", err)
		}

		slog.Info("shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: REPOMOVER_LISTEN_ADDR)")
	rootCmd.AddCommand(serveCmd)
}
