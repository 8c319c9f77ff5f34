package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cesargomez89/recshelf/internal/app"
	"github.com/cesargomez89/recshelf/internal/constants"
	httpapp "github.com/cesargomez89/recshelf/internal/http"
	"github.com/cesargomez89/recshelf/internal/scheduler"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var noInitialSync bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with scheduled and watched syncs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx, !noInitialSync)
		},
	}
	cmd.Flags().BoolVar(&noInitialSync, "no-initial-sync", false, "do not start a sync cycle at startup")
	cmd.Flags().String("port", "", "HTTP port")
	cmd.Flags().Bool("watch", false, "trigger a sync when the watched directory changes")
	_ = ctx.v.BindPFlag("port", cmd.Flags().Lookup("port"))
	_ = ctx.v.BindPFlag("watch", cmd.Flags().Lookup("watch"))
	return cmd
}

func runServe(parent context.Context, cc *commandContext, initialSync bool) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := cc.validConfig()
	if err != nil {
		return err
	}
	log := cc.logger()

	db, err := cc.openStore()
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // closing on shutdown

	syncSvc, err := cc.newSyncService(cfg, db)
	if err != nil {
		return err
	}

	switch n, err := syncSvc.RecoverInterruptedRuns(parent); {
	case errors.Is(err, app.ErrSyncLocked):
		log.Info("Catalog locked by another process, leaving running sync runs untouched")
	case err != nil:
		log.Error("Failed to close interrupted sync runs", "error", err)
	case n > 0:
		log.Warn("Marked interrupted sync runs as failed", "count", n)
	}
	coord := app.NewSyncCoordinator(syncSvc, db, cfg.WatchDir, log)
	defer coord.Stop()

	sched := scheduler.New(coord, cfg.WatchDir, log)
	sched.Interval = cfg.SyncInterval
	sched.Watch = cfg.Watch
	sched.Debounce = cfg.WatchDebounce
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	if initialSync {
		coord.StartOrJoin()
	}

	h := httpapp.NewHandler(coord, db, app.NewRecordingService(db, log), log)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpapp.NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server listening", "addr", srv.Addr, "watch_dir", cfg.WatchDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	sigCtx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
	case err := <-serveErr:
		return err
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultShutdownWait)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	return nil
}
