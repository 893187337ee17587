package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/workforce-engine/api"
	"github.com/warp/workforce-engine/store/sqlite"
	"github.com/warp/workforce-engine/telemetry"
	"github.com/warp/workforce-engine/workforce"
)

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run the tick scheduler",
		Long: `serve resumes from the latest snapshot in the database, or loads
--scenario when the database is empty, then serves:

  /api/*          REST API
  /metrics        Prometheus metrics
  /ws/telemetry   websocket event stream (?topic=a,b to filter)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
	f := cmd.Flags()
	f.String("addr", ":8080", "HTTP listen address")
	f.String("db-path", "./data/workforce.db", "SQLite database path (\":memory:\" for ephemeral)")
	f.StringSlice("cors-origins", api.DefaultOrigins, "allowed CORS origins")
	f.Bool("scheduler.enabled", false, "step ticks automatically")
	f.Duration("scheduler.interval", time.Second, "wall time between automatic ticks")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	log := a.log
	engine, err := a.engine()
	if err != nil {
		return err
	}

	if a.cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(a.cfg.DBPath), 0o755); err != nil {
			return err
		}
	}
	store, err := sqlite.New(a.cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	metrics := telemetry.NewCollector()
	hub := telemetry.NewHub(log)
	sink := telemetry.NewFanout(metrics, hub)
	if a.cfg.TelemetryDir != "" {
		jsonl := telemetry.NewJSONLWriter(a.cfg.TelemetryDir, "events", engine.Tuning().TickHours)
		defer jsonl.Close()
		sink.Add(jsonl)
	}

	sim := api.NewSimulation(engine, store,
		api.WithSink(sink),
		api.WithMetrics(metrics),
		api.WithSimLogger(log),
	)
	if err := sim.Resume(ctx); err != nil {
		if !errors.Is(err, workforce.ErrSnapshotNotFound) {
			return err
		}
		sc, err := a.scenario()
		if err != nil {
			return err
		}
		if err := sim.Load(ctx, sc, a.cfg.Seed); err != nil {
			return err
		}
	}

	handler := api.NewHandler(sim, log)
	handler.Metrics = metrics.Handler()
	handler.Telemetry = hub

	scheduler := api.NewTickScheduler(sim, log)
	scheduler.Enabled = a.cfg.Scheduler.Enabled
	scheduler.Interval = a.cfg.Scheduler.Interval
	scheduler.Start()

	srv := &http.Server{
		Addr:         a.cfg.Addr,
		Handler:      api.NewRouter(handler, a.cfg.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "addr", a.cfg.Addr, "db", a.cfg.DBPath,
			"scheduler", a.cfg.Scheduler.Enabled)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		scheduler.Stop()
		hub.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	scheduler.Stop()
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
