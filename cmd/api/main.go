package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openclinic/patient-portal/internal/api/router"
	"github.com/openclinic/patient-portal/internal/appointments"
	appconfig "github.com/openclinic/patient-portal/internal/config"
	"github.com/openclinic/patient-portal/internal/identity"
	"github.com/openclinic/patient-portal/internal/notify"
	"github.com/openclinic/patient-portal/internal/observability/metrics"
	"github.com/openclinic/patient-portal/internal/session"
	"github.com/openclinic/patient-portal/internal/view"
	"github.com/openclinic/patient-portal/pkg/logging"
)

func main() {
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting patient-portal",
		"env", cfg.Env,
		"port", cfg.Port,
		"appointment_service", cfg.AppointmentServiceURL,
	)

	// Session context: where the login flow left the user's credentials.
	var store session.Store
	switch cfg.SessionBackend {
	case "static":
		store = &session.StaticStore{
			UserJSON:    []byte(cfg.StaticUserJSON),
			BearerToken: cfg.StaticBearerToken,
		}
	default:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()
		store = session.NewRedisStore(client, cfg.SessionID)
	}

	resolver := identity.NewResolver(store, logger)
	service := appointments.NewHTTPClient(cfg.AppointmentServiceURL, cfg.AppointmentServiceTimeout, logger)

	feed := notify.NewFeed(cfg.NotificationFeedSize)
	notifier := notify.Multi{notify.NewLogNotifier(logger), feed}

	viewMetrics := metrics.NewViewMetrics(nil)
	engine := view.NewEngine(resolver, service, notifier, viewMetrics, logger)
	scheduler := view.NewScheduler(engine, logger).WithInterval(cfg.PollInterval)

	// The scheduler owns the initial load and every refresh thereafter.
	pollCtx, stopPolling := context.WithCancel(context.Background())
	pollerDone := make(chan struct{})
	go func() {
		scheduler.Run(pollCtx)
		close(pollerDone)
	}()

	handler := view.NewHandler(engine, scheduler, feed, logger)
	r := router.New(&router.Config{
		Logger:      logger,
		ViewHandler: handler,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	stopPolling()
	<-pollerDone

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
