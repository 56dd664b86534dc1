package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"

	"lingua-schedule/internal/config"
	"lingua-schedule/internal/eligibility"
	"lingua-schedule/internal/events"
	availGet "lingua-schedule/internal/http-server/handlers/availability/get"
	availSet "lingua-schedule/internal/http-server/handlers/availability/set"
	bookingCancel "lingua-schedule/internal/http-server/handlers/bookings/cancel"
	bookingCreate "lingua-schedule/internal/http-server/handlers/bookings/create"
	bookingDelete "lingua-schedule/internal/http-server/handlers/bookings/delete"
	bookingEligibility "lingua-schedule/internal/http-server/handlers/bookings/eligibility"
	bookingFinish "lingua-schedule/internal/http-server/handlers/bookings/finish"
	bookingGet "lingua-schedule/internal/http-server/handlers/bookings/get"
	bookingReschedule "lingua-schedule/internal/http-server/handlers/bookings/reschedule"
	slotGet "lingua-schedule/internal/http-server/handlers/slots/get"
	"lingua-schedule/internal/lock"
	svc "lingua-schedule/internal/service"
	"lingua-schedule/internal/storage/postgres"
	"lingua-schedule/pkg/handlers/slogpretty"
	"lingua-schedule/pkg/middleware/mwLogger"
	"lingua-schedule/pkg/sl"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {

	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("Starting scheduling API", slog.String("env", cfg.Env))
	log.Debug("Debug messages are enabled")

	storage, err := postgres.New(cfg.StoragePath)
	if err != nil {
		log.Error("Failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	locker, err := lock.NewRedisLock(cfg.RedisAddr)
	if err != nil {
		log.Error("Failed to init redis lock", sl.Err(err))
		os.Exit(1)
	}

	publisher, err := events.NewRedisPublisher(cfg.RedisAddr)
	if err != nil {
		log.Error("Failed to init event publisher", sl.Err(err))
		os.Exit(1)
	}

	engine := eligibility.New(eligibility.Policy{
		MaxReschedules: cfg.Scheduling.MaxReschedules,
		MinLeadTime:    cfg.Scheduling.RescheduleLeadTime,
		JoinableBefore: cfg.Scheduling.JoinableBefore,
		JoinableAfter:  cfg.Scheduling.JoinableAfter,
	}, eligibility.RealClock{})

	catalog := svc.StaticCatalog{DefaultMinutes: cfg.Scheduling.DefaultClassDuration}

	service := svc.NewService(storage, locker, publisher, engine, catalog, cfg.Scheduling, log)

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(mwLogger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	router.Use(CORS)

	// Availability
	router.Put("/teachers/{id}/availability", availSet.New(log, service))
	router.Get("/teachers/{id}/availability", availGet.New(log, service))

	// Bookable slots
	router.Get("/teachers/{id}/slots", slotGet.New(log, service))

	// Bookings
	router.Post("/bookings", bookingCreate.New(log, service))
	router.Get("/bookings", bookingGet.New(log, service))
	router.Get("/bookings/{id}", bookingGet.New(log, service))
	router.Get("/bookings/{id}/eligibility", bookingEligibility.New(log, service))
	router.Post("/bookings/reschedule", bookingReschedule.New(log, service))
	router.Put("/bookings/{id}/cancel", bookingCancel.New(log, service))
	router.Put("/bookings/{id}/finish", bookingFinish.New(log, service))
	router.Delete("/bookings/{id}", bookingDelete.New(log, service))

	serv := &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serverErrCh := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", slog.String("addr", cfg.Address))
		if err := serv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		} else {
			serverErrCh <- nil
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case err := <-serverErrCh:
		if err != nil {
			log.Error("HTTP server stopped unexpectedly", sl.Err(err))
		} else {
			log.Info("HTTP server stopped gracefully")
		}
	}

	shutdownTimeout := cfg.HTTPServer.ShutdownTimeout

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info("Shutting down HTTP server", slog.String("timeout", shutdownTimeout.String()))

	if err := serv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", sl.Err(err))
	} else {
		log.Info("Server shutdown complete")
	}

	if storage != nil {
		if err := storage.Close(); err != nil {
			log.Error("Failed to close storage", sl.Err(err))
		} else {
			log.Info("Storage closed")
		}
	}

	if locker != nil {
		if err := locker.Close(); err != nil {
			log.Error("Failed to close locker", sl.Err(err))
		}
	}

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Error("Failed to close event publisher", sl.Err(err))
		}
	}

	log.Info("Shutdown finished, server stopped")

}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
