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

	"RequestCriteria/internal/db"
	"RequestCriteria/internal/logger"
	"RequestCriteria/internal/resolver"
	"RequestCriteria/internal/router"
	"RequestCriteria/internal/schema"
)

const snapshotTTL = 24 * time.Hour

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(parent context.Context, opts *rootOptions) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.load()
	if err := logger.Init(cfg.Log.Dir); err != nil {
		return fmt.Errorf("log init: %w", err)
	}

	conn, err := db.OpenPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer conn.Close()
	logger.Info("postgres_connected", nil)

	var store schema.SnapshotStore
	rdb, err := db.OpenRedis(ctx, cfg.RedisAddr)
	switch {
	case err != nil:
		logger.Warn("redis_unavailable", logger.Fields{"error": err.Error()})
	case rdb != nil:
		defer rdb.Close()
		store = rdb
	}

	reg, err := schema.LoadCached(ctx, store, cfg.ModelsDir, snapshotTTL)
	if err != nil {
		return fmt.Errorf("load models: %w", err)
	}
	logger.Info("models_initialized", logger.Fields{"entities": len(reg.Names())})

	compilerOpts, err := cfg.CompilerOptions()
	if err != nil {
		return err
	}
	svc := resolver.New(reg, compilerOpts, conn)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(cfg.CORS, svc),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("server_start", logger.Fields{"port": cfg.Port})
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("server_shutdown", nil)
	return srv.Shutdown(shutdownCtx)
}
