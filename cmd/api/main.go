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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/referral-api/internal/config"
	adminhandler "github.com/jwalitptl/referral-api/internal/handler/admin"
	authhandler "github.com/jwalitptl/referral-api/internal/handler/auth"
	eventhandler "github.com/jwalitptl/referral-api/internal/handler/event"
	facilityhandler "github.com/jwalitptl/referral-api/internal/handler/facility"
	"github.com/jwalitptl/referral-api/internal/handler/health"
	patienthandler "github.com/jwalitptl/referral-api/internal/handler/patient"
	"github.com/jwalitptl/referral-api/internal/handler/prometheus"
	providerhandler "github.com/jwalitptl/referral-api/internal/handler/provider"
	referralhandler "github.com/jwalitptl/referral-api/internal/handler/referral"
	slothandler "github.com/jwalitptl/referral-api/internal/handler/slot"
	specialityhandler "github.com/jwalitptl/referral-api/internal/handler/speciality"
	"github.com/jwalitptl/referral-api/internal/lock"
	"github.com/jwalitptl/referral-api/internal/middleware"
	"github.com/jwalitptl/referral-api/internal/repository"
	"github.com/jwalitptl/referral-api/internal/repository/store"
	"github.com/jwalitptl/referral-api/internal/router"
	authsvc "github.com/jwalitptl/referral-api/internal/service/auth"
	"github.com/jwalitptl/referral-api/internal/service/dashboard"
	"github.com/jwalitptl/referral-api/internal/service/event"
	"github.com/jwalitptl/referral-api/internal/service/facility"
	"github.com/jwalitptl/referral-api/internal/service/notification"
	"github.com/jwalitptl/referral-api/internal/service/outbox"
	"github.com/jwalitptl/referral-api/internal/service/patient"
	"github.com/jwalitptl/referral-api/internal/service/provider"
	"github.com/jwalitptl/referral-api/internal/service/referral"
	"github.com/jwalitptl/referral-api/internal/service/slot"
	"github.com/jwalitptl/referral-api/internal/service/speciality"
	"github.com/jwalitptl/referral-api/pkg/auth"
	"github.com/jwalitptl/referral-api/pkg/logger"
	"github.com/jwalitptl/referral-api/pkg/messaging"
	"github.com/jwalitptl/referral-api/pkg/messaging/redis"
	"github.com/jwalitptl/referral-api/pkg/metrics"
	"github.com/jwalitptl/referral-api/pkg/security"
	"github.com/jwalitptl/referral-api/pkg/worker"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to load .env")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Console:    cfg.Log.Console,
	})
	log.Logger = appLogger.Zerolog()

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := middleware.RegisterValidators(); err != nil {
		log.Fatal().Err(err).Msg("failed to register validators")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to open database")
	}

	var promH *prometheus.Handler
	m := metrics.Noop()
	if cfg.Monitoring.PrometheusEnabled {
		promH = prometheus.New()
		m = metrics.NewMetrics("referral", "api", promH.Registry())
	}

	// Without Redis the relay and consumer run inside this process
	var (
		locker      lock.Locker
		redisClient *goredis.Client
		pipeline    *messaging.BrokerAdapter
	)
	if cfg.Redis.URL != "" {
		redisClient, err = redis.NewClient(ctx, cfg.Redis.ToBrokerConfig())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		locker = lock.NewRedisLocker(redisClient, cfg.Redis.LockTTL)
	} else {
		locker = lock.NewLocalLocker()
	}

	hasher := security.NewBcryptHasher(0)
	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.TTL)
	emitter := outbox.NewEmitter(db.Outbox)

	facilitySvc := facility.NewService(db.Facilities, db.FacilityAdmins, cfg.Cache.FacilityTTL, cfg.Cache.CleanupInterval, appLogger)
	slotSvc := slot.NewService(db, facilitySvc, m, appLogger)
	referralSvc := referral.NewService(db, facilitySvc, emitter, m, appLogger)
	eventSvc := event.NewService(db, emitter, locker, m, appLogger)
	patientSvc := patient.NewService(db.Patients, appLogger)
	providerSvc := provider.NewService(db.Providers, facilitySvc, hasher, appLogger)
	dashboardSvc := dashboard.NewService(db, facilitySvc)
	specialitySvc := speciality.NewService(db.Specialities)
	authService := authsvc.NewService(db, jwtSvc, hasher, appLogger)

	if redisClient == nil {
		pipeline, err = startInProcessPipeline(ctx, cfg, db, patientSvc, facilitySvc, m, appLogger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start in-process event pipeline")
		}
	}

	var rateLimit *middleware.RateLimiterConfig
	if cfg.RateLimit.Enabled {
		rateLimit = &middleware.RateLimiterConfig{
			Rate:  rate.Limit(cfg.RateLimit.RequestsPerSecond),
			Burst: cfg.RateLimit.Burst,
			Idle:  10 * time.Minute,
		}
	}

	r := router.NewRouter(
		middleware.NewAuthMiddleware(authService),
		health.NewHandler(db.Ping),
		promH,
		router.RouterConfig{
			Version:        cfg.App.Version,
			RequestTimeout: cfg.Server.RequestTimeout,
			CORSConfig: middleware.CORSConfig{
				AllowOrigins: cfg.Security.AllowedOrigins,
				AllowMethods: cfg.Security.AllowedMethods,
				AllowHeaders: cfg.Security.AllowedHeaders,
			},
			Security: middleware.SecurityConfig{
				HSTS:       cfg.App.IsProduction(),
				HSTSMaxAge: middleware.DefaultSecurityConfig().HSTSMaxAge,
			},
			RateLimit:   rateLimit,
			MetricsPath: cfg.Monitoring.MetricsPath,
		},
	)
	r.Setup(
		authhandler.NewHandler(authService),
		facilityhandler.NewHandler(facilitySvc),
		slothandler.NewHandler(slotSvc),
		referralhandler.NewHandler(referralSvc),
		eventhandler.NewHandler(eventSvc),
		patienthandler.NewHandler(patientSvc, dashboardSvc, referralSvc, eventSvc),
		providerhandler.NewHandler(providerSvc, dashboardSvc),
		adminhandler.NewHandler(dashboardSvc),
		specialityhandler.NewHandler(specialitySvc),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("driver", cfg.Database.Driver).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if pipeline != nil {
		if err := pipeline.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close in-process broker")
		}
		pipeline.Wait()
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close Redis client")
		}
	}
	if err := db.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to close database")
	}

	log.Info().Msg("server exited")
}

// startInProcessPipeline relays the outbox over an in-memory broker and
// consumes it in this process
func startInProcessPipeline(
	ctx context.Context,
	cfg *config.Config,
	db *repository.Store,
	patients *patient.Service,
	facilities *facility.Service,
	m *metrics.Metrics,
	appLogger *logger.Logger,
) (*messaging.BrokerAdapter, error) {
	broker := messaging.NewInProcBroker()
	adapter := messaging.NewBrokerAdapter(broker, appLogger)

	mailer, err := notification.NewMailer(cfg.Notify)
	if err != nil {
		return nil, err
	}

	zl, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	consumer := notification.NewConsumer(patients, db.Providers, facilities, mailer, m, zl.Named("notification"))
	if err := adapter.Subscribe(ctx, consumer.Handle, notification.Topics...); err != nil {
		return nil, err
	}

	processor, err := worker.NewOutboxProcessor(db.Outbox, db.Tx, broker, cfg.Outbox.ToWorkerConfig(), appLogger, m)
	if err != nil {
		return nil, err
	}
	go processor.Start(ctx)

	log.Warn().Msg("Redis is not configured, running the event pipeline in-process")
	return adapter, nil
}
