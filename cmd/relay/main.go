package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cipherlink/internal/logutils"
	"cipherlink/internal/relayserver"
)

var (
	addr     string
	dbPath   string
	logLevel string
)

func main() {
	root := &cobra.Command{
		Use:           "relay",
		Short:         "Key directory and message relay for cipherlink",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
	root.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	root.Flags().StringVar(&dbPath, "db", "", "LevelDB directory (default: in memory)")
	root.Flags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context) error {
	logger, err := logutils.NewProduction(logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	backend, err := relayserver.OpenLevelDB(dbPath)
	if err != nil {
		return err
	}
	defer backend.Close()

	srv := relayserver.New(backend, logger)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info("relay listening", zap.String("addr", addr), zap.String("db", dbPath))
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	// Hijacked websocket connections are not tracked by Shutdown.
	srv.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
