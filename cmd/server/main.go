package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"toolsite/backend/internal/config"
	"toolsite/backend/internal/db"
	"toolsite/backend/internal/handler"
	"toolsite/backend/internal/maintenance"
	"toolsite/backend/internal/metrics"
	"toolsite/backend/internal/repository"
	"toolsite/backend/internal/router"
	"toolsite/backend/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	engineOptions, err := cfg.Pomodoro.EngineOptions()
	if err != nil {
		log.Fatalf("load pomodoro options: %v", err)
	}
	location := engineOptions.Location
	engineOptions.Logger = slog.Default().With("component", "pomodoro")

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database, cfg.MigrationsDir); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	collector := metrics.NewCollector()
	userRepo := repository.NewUserRepository(database)
	kvRepo := repository.NewKVRepository(database)
	phaseRunRepo := repository.NewPhaseRunRepository(database)

	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenTTL)
	pomodoroService := service.NewPomodoroService(kvRepo, phaseRunRepo, collector, engineOptions)

	retention, err := maintenance.NewRetention(
		cfg.Pomodoro.RetentionCron,
		cfg.Pomodoro.RetentionDays,
		pomodoroService,
		maintenance.WithLocation(location),
	)
	if err != nil {
		log.Fatalf("configure retention: %v", err)
	}

	engine := router.New(authService, router.Handlers{
		Auth:     handler.NewAuthHandler(authService),
		Pomodoro: handler.NewPomodoroHandler(pomodoroService),
		Stream:   handler.NewStreamHandler(pomodoroService, cfg.CORSOrigins),
		Tools:    handler.NewToolsHandler(location),
		Metrics:  collector.Handler(),
	}, cfg.CORSOrigins)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("backend listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if retention.Enabled() {
			log.Printf("pruning records older than %d days on %q", cfg.Pomodoro.RetentionDays, cfg.Pomodoro.RetentionCron)
			retention.Start()
		}
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		retention.Stop(shutdownCtx)
		// ends open SSE and websocket streams so Shutdown can drain them
		pomodoroService.Close()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("run server: %v", err)
	}
	log.Println("backend stopped")
}
