// Package main is the entry point for the fleet schedule API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/pkordes/fleet-schedule/api"
	"github.com/pkordes/fleet-schedule/internal/config"
	"github.com/pkordes/fleet-schedule/internal/domain"
	"github.com/pkordes/fleet-schedule/internal/handler"
	"github.com/pkordes/fleet-schedule/internal/middleware"
	"github.com/pkordes/fleet-schedule/internal/realtime"
	"github.com/pkordes/fleet-schedule/internal/repo"
	"github.com/pkordes/fleet-schedule/internal/scheduler"
	"github.com/pkordes/fleet-schedule/internal/service"
)

// watchRetry is the pause before a failed change feed is reopened.
const watchRetry = 5 * time.Second

// stores are the persistence adapters of the selected backend.
type stores struct {
	trips     repo.TripRepo
	watcher   repo.TripWatcher
	counters  repo.CounterRepo
	drivers   repo.DriverRepo
	vehicles  repo.VehicleRepo
	companies repo.CompanyRepo
	routes    repo.RouteRepo
	close     func()
}

func main() {
	// A missing .env is normal in production.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not read .env", "error", err)
	}

	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// "Today" is the calendar date in the configured zone.
	clock := domain.Clock(func() time.Time { return time.Now().In(cfg.Location) })

	// --- Storage ----------------------------------------------------------
	st, err := openStores(ctx, cfg, clock, logger)
	if err != nil {
		return err
	}
	defer st.close()

	// --- Services ---------------------------------------------------------
	fleet := service.NewFleetService(st.drivers, st.vehicles, clock, cfg.ExpiryThresholdDays, logger)
	// Driver companies must be cached before trips are annotated with them.
	if err := fleet.Load(ctx); err != nil {
		return fmt.Errorf("load drivers: %w", err)
	}
	reference := service.NewReferenceService(st.companies, st.routes, clock, logger)
	numbers := service.NewDocumentNumberer(st.counters)
	schedule := service.NewScheduleService(st.trips, numbers, fleet, clock, logger)
	if err := schedule.Load(ctx); err != nil {
		return fmt.Errorf("load trips: %w", err)
	}
	fleet.OnDirectoryChange(func() { schedule.RecomputeStatuses() })
	logger.Info("trips loaded", "live", len(schedule.List()), "archived", len(schedule.Archived()))

	hub := realtime.NewHub(schedule, allowOrigins(cfg.CORSOrigins), logger)
	unsubscribe := schedule.Subscribe(hub.Publish)
	defer unsubscribe()

	jobs, err := scheduler.New(schedule, scheduler.Config{
		ArchiveSchedule:   cfg.ArchiveSchedule,
		ArchiveCutoffDays: cfg.ArchiveCutoffDays,
		Directory:         fleet,
		DirectorySchedule: cfg.DirectorySchedule,
		Location:          cfg.Location,
	}, logger)
	if err != nil {
		return err
	}

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID → RealIP → Logger → Recoverer
	// → CORS → body limit.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))

	srv := handler.NewServer(handler.Deps{
		Schedule:  schedule,
		Fleet:     fleet,
		Reference: reference,
		Numbers:   numbers,
		Export:    service.NewExportService(schedule),
		Realtime:  hub,
		OpenAPI:   api.OpenAPI,
		Clock:     clock,
	})
	r.Mount("/", srv.Routes())

	// --- HTTP Server ------------------------------------------------------
	// Explicit timeouts prevent slowloris and resource exhaustion attacks.
	// WebSocket connections set their own deadlines after the upgrade.
	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error {
		watch(gctx, st.watcher, schedule.ApplySnapshot, logger)
		return nil
	})
	g.Go(func() error {
		logger.Info("server starting", "addr", httpSrv.Addr, "backend", cfg.StoreBackend)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	jobs.Start()

	// Graceful shutdown: wait for a signal (or a failed component), then give
	// in-flight requests and running jobs up to 15 seconds to complete.
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 15*time.Second)
		defer cancel()
		jobs.Stop(shutdownCtx)
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// openStores connects the backend named by cfg.StoreBackend.
func openStores(ctx context.Context, cfg config.Config, clock domain.Clock, logger *slog.Logger) (stores, error) {
	switch cfg.StoreBackend {
	case config.BackendFirestore:
		client, err := repo.NewFirestoreClient(ctx, repo.FirestoreOptions{
			ProjectID:         cfg.FirebaseProjectID,
			CredentialsFile:   cfg.FirebaseCredentialsFile,
			CredentialsBase64: cfg.FirebaseCredentialsBase64,
		})
		if err != nil {
			return stores{}, err
		}
		logger.Info("firestore client ready", "project", cfg.FirebaseProjectID)
		trips := repo.NewFirestoreTripRepo(client, clock)
		return stores{
			trips:     trips,
			watcher:   trips,
			counters:  repo.NewFirestoreCounterRepo(client),
			drivers:   repo.NewFirestoreDriverRepo(client, clock),
			vehicles:  repo.NewFirestoreVehicleRepo(client, clock),
			companies: repo.NewFirestoreCompanyRepo(client, clock),
			routes:    repo.NewFirestoreRouteRepo(client, clock),
			close: func() {
				if err := client.Close(); err != nil {
					logger.Warn("close firestore client", "error", err)
				}
			},
		}, nil

	default:
		// pgxpool.New does not open connections immediately; the ping does.
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return stores{}, fmt.Errorf("create database pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return stores{}, fmt.Errorf("connect to database: %w", err)
		}
		logger.Info("database connection established")
		trips := repo.NewTripRepo(pool)
		return stores{
			trips:     trips,
			watcher:   repo.NewTripWatcher(pool, trips),
			counters:  repo.NewCounterRepo(pool),
			drivers:   repo.NewDriverRepo(pool),
			vehicles:  repo.NewVehicleRepo(pool),
			companies: repo.NewCompanyRepo(pool),
			routes:    repo.NewRouteRepo(pool),
			close:     pool.Close,
		}, nil
	}
}

// watch keeps the change feed open until ctx ends, reopening it after a
// failure.
func watch(ctx context.Context, w repo.TripWatcher, fn repo.SnapshotFunc, logger *slog.Logger) {
	for {
		err := w.Watch(ctx, fn)
		if ctx.Err() != nil {
			return
		}
		logger.Error("trip change feed stopped", "error", err, "retry_in", watchRetry.String())
		select {
		case <-ctx.Done():
			return
		case <-time.After(watchRetry):
		}
	}
}

// allowOrigins accepts WebSocket upgrades from the CORS origins and from
// clients that send no Origin header.
func allowOrigins(origins []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}
