package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpserver "github.com/fyrsmithlabs/buildscout/internal/http"
	"github.com/fyrsmithlabs/buildscout/internal/patternstore"
)

var (
	// watch command flags
	watchAddr string
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchAddr, "addr", "", "serve the HTTP API on this address (overrides server.addr)")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the library loaded and reload it when files change",
	Long: `Hold the pattern library in memory and reload it whenever another
process rewrites the pattern or comment files.

With an address set, the HTTP API and the Prometheus /metrics endpoint are
served until the process is interrupted.

Examples:
  # Report reloads only
  buildscout watch

  # Serve the API next to a tracker writing to the same library
  buildscout watch --addr localhost:9102`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	if watchAddr != "" {
		a.cfg.Server.Addr = watchAddr
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := a.services.Store()
	w, err := patternstore.NewWatcher(store, a.logger.Underlying().Named("watcher"))
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("failed to watch library: %w", err)
	}
	defer w.Stop()

	errCh := make(chan error, 1)
	var srv *httpserver.Server
	if a.cfg.Server.Addr != "" {
		srv, err = httpserver.NewServer(a.services, a.logger.Underlying().Named("http"),
			&httpserver.Config{Addr: a.cfg.Server.Addr},
			httpserver.WithMeter(a.telemetry.Meter(instrumentationName)),
			httpserver.WithVersion(version))
		if err != nil {
			return fmt.Errorf("failed to create http server: %w", err)
		}
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Watching %s (%d patterns)\n", a.cfg.Store.DataDir, store.Len())
	if srv != nil {
		fmt.Fprintf(out, "Serving HTTP API on %s\n", a.cfg.Server.Addr)
	}

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-errCh:
			runErr = fmt.Errorf("http server failed: %w", err)
			break loop
		case <-w.Reloads():
			st := store.Stats()
			a.logger.Info(ctx, "library reloaded", zap.Int("patterns", st.TotalPatterns))
			fmt.Fprintf(out, "Reloaded: %d patterns, %d comments\n", st.TotalPatterns, st.TotalComments)
		}
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn(ctx, "http server shutdown failed", zap.Error(err))
		}
	}
	return runErr
}
