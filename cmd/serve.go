package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dashloom-cli/internal/api"
	"github.com/KaramelBytes/dashloom-cli/internal/errors"
	"github.com/KaramelBytes/dashloom-cli/internal/logger"
)

var (
	serveAddr     string
	serveShutdown int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve extraction, evaluation, scoring and monitoring over HTTP",
	Long: `Start the JSON API. Snapshots recorded through POST /api/v1/snapshots go to
the configured history store, so the CLI and the server share one history.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return errors.New("no config loaded")
		}
		addr := serveAddr
		if addr == "" {
			addr = cfg.ServerAddr
		}
		m, closeStore, err := openMonitor(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		h := api.NewHandler(cfg.Engine(), m,
			api.WithWeights(cfg.Quality),
			api.WithThresholds(cfg.Thresholds))
		srv := &http.Server{
			Addr:              addr,
			Handler:           api.SetupRoutes(h),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			logger.Logger.Infow("server listening", "addr", addr, "snapshots", m.History().Len())
			errCh <- srv.ListenAndServe()
		}()
		pterm.Success.Printf("Listening on http://%s\n", addr)

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "serve")
			}
			return nil
		case <-ctx.Done():
		}

		logger.Logger.Infow("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(serveShutdown)*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (defaults to config server_addr)")
	serveCmd.Flags().IntVar(&serveShutdown, "shutdown-sec", 10, "graceful shutdown timeout in seconds")
}
