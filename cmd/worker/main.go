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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jwalitptl/referral-api/internal/config"
	"github.com/jwalitptl/referral-api/internal/repository"
	"github.com/jwalitptl/referral-api/internal/repository/store"
	"github.com/jwalitptl/referral-api/internal/service/facility"
	"github.com/jwalitptl/referral-api/internal/service/notification"
	"github.com/jwalitptl/referral-api/internal/service/outbox"
	"github.com/jwalitptl/referral-api/internal/service/patient"
	"github.com/jwalitptl/referral-api/internal/service/referral"
	"github.com/jwalitptl/referral-api/internal/service/slot"
	jobs "github.com/jwalitptl/referral-api/internal/worker"
	"github.com/jwalitptl/referral-api/pkg/logger"
	"github.com/jwalitptl/referral-api/pkg/messaging"
	"github.com/jwalitptl/referral-api/pkg/messaging/redis"
	"github.com/jwalitptl/referral-api/pkg/metrics"
	"github.com/jwalitptl/referral-api/pkg/worker"
)

const jobTimeout = 10 * time.Minute

func newZap(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zc := zap.NewProductionConfig()
	if cfg.Console {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func setupHealthCheck(port int, db *repository.Store, reg *prometheus.Registry, zl *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl.Error("Health check server failed", zap.Error(err))
		}
	}()
	return srv
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to load .env")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	zl, err := newZap(cfg.Log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build logger")
	}
	defer zl.Sync() //nolint:errcheck

	appLogger := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Console:    cfg.Log.Console,
	}).WithFields(map[string]interface{}{"component": "outbox"})

	if cfg.Redis.URL == "" {
		zl.Fatal("Redis is required by the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg)
	if err != nil {
		zl.Fatal("Failed to open database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics("referral", "worker", registry)
	healthSrv := setupHealthCheck(cfg.Monitoring.WorkerPort, db, registry, zl)

	client, err := redis.NewClient(ctx, cfg.Redis.ToBrokerConfig())
	if err != nil {
		zl.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	zerologger := appLogger.Zerolog()
	broker := redis.NewRedisBroker(client, &zerologger)
	adapter := messaging.NewBrokerAdapter(broker, appLogger)

	facilitySvc := facility.NewService(db.Facilities, db.FacilityAdmins, cfg.Cache.FacilityTTL, cfg.Cache.CleanupInterval, appLogger)
	patientSvc := patient.NewService(db.Patients, appLogger)
	emitter := outbox.NewEmitter(db.Outbox)
	referralSvc := referral.NewService(db, facilitySvc, emitter, m, appLogger)
	slotSvc := slot.NewService(db, facilitySvc, m, appLogger)

	mailer, err := notification.NewMailer(cfg.Notify)
	if err != nil {
		zl.Fatal("Failed to configure notifier", zap.String("driver", cfg.Notify.Driver), zap.Error(err))
	}
	consumer := notification.NewConsumer(patientSvc, db.Providers, facilitySvc, mailer, m, zl.Named("notification"))
	if err := adapter.Subscribe(ctx, consumer.Handle, notification.Topics...); err != nil {
		zl.Fatal("Failed to subscribe", zap.Error(err))
	}

	processor, err := worker.NewOutboxProcessor(db.Outbox, db.Tx, broker, cfg.Outbox.ToWorkerConfig(), appLogger, m)
	if err != nil {
		zl.Fatal("Failed to create outbox processor", zap.Error(err))
	}
	go processor.Start(ctx)

	scheduler := jobs.NewScheduler(zl.Named("cron"), jobTimeout)
	j := &jobs.Jobs{
		Reminders: referralSvc,
		Holds:     slotSvc,
		Outbox:    emitter,
		Logger:    zl.Named("jobs"),
	}
	if err := j.Register(scheduler, cfg.Jobs); err != nil {
		zl.Fatal("Failed to register jobs", zap.Error(err))
	}
	scheduler.Start()

	zl.Info("Worker started",
		zap.String("driver", cfg.Database.Driver),
		zap.String("notifier", mailer.Name()),
		zap.Strings("topics", notification.Topics))

	<-ctx.Done()
	zl.Info("Shutting down worker")

	scheduler.Stop()
	// Closing the broker also closes the Redis client
	if err := adapter.Close(); err != nil {
		zl.Error("Failed to close broker", zap.Error(err))
	}
	adapter.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		zl.Error("Failed to stop health server", zap.Error(err))
	}
	if err := db.Close(shutdownCtx); err != nil {
		zl.Error("Failed to close database", zap.Error(err))
	}
	zl.Info("Worker exited")
}
