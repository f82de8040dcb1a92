package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/hospital-api/internal/bootstrap"
	"github.com/jwalitptl/hospital-api/internal/config"
	"github.com/jwalitptl/hospital-api/internal/handler"
	"github.com/jwalitptl/hospital-api/internal/handler/accesscode"
	"github.com/jwalitptl/hospital-api/internal/middleware"
	"github.com/jwalitptl/hospital-api/internal/router"
	accessCodeService "github.com/jwalitptl/hospital-api/internal/service/accesscode"
	eventService "github.com/jwalitptl/hospital-api/internal/service/event"
	"github.com/jwalitptl/hospital-api/pkg/auth"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/messaging/redis"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
	"github.com/jwalitptl/hospital-api/pkg/validator"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.New("info", false).Fatal(err, "failed to load configuration")
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	log.SetGlobal()

	if cfg.JWT.Secret == "" {
		log.Fatal(errors.New("jwt secret is empty"), "set HOSPITAL_JWT_SECRET")
	}
	if cfg.Store.Driver == "memory" && !cfg.Worker.Embedded {
		log.Warn("Memory store without embedded worker; issued codes will not be emailed")
	}

	gin.SetMode(cfg.Server.GinMode)
	if err := validator.RegisterGin(); err != nil {
		log.Fatal(err, "failed to register validators")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize stores
	stores, err := bootstrap.OpenStores(ctx, cfg, log)
	if err != nil {
		log.Fatal(err, "failed to open store", "driver", cfg.Store.Driver)
	}
	defer stores.Close()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New("hospital", registry)

	// Initialize services
	codeConfig := accessCodeService.Config{MaxAttempts: cfg.AccessCodes.MaxAttempts}
	sealer, err := bootstrap.PayloadSealer(cfg.Outbox)
	if err != nil {
		log.Fatal(err, "invalid payload key")
	}
	if sealer != nil {
		codeConfig.Sealer = sealer
	} else {
		log.Warn("No payload key configured; issued codes travel in plain text through the outbox")
	}

	eventSvc := eventService.NewService(stores.Outbox)
	codeSvc := accessCodeService.NewService(
		stores.Codes,
		stores.Subjects,
		eventSvc,
		codeConfig,
		log.With("component", "access_codes"),
		m,
	)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer))

	// Initialize handlers
	h := handler.NewHandler(stores.Checks, registry)
	codeHandler := accesscode.NewHandler(codeSvc)

	// Setup router
	routerConfig := router.RouterConfig{
		RateIdleTTL: cfg.RateLimit.IdleTTL,
		Lockout: middleware.LockoutConfig{
			MaxFailures: cfg.Lockout.MaxFailures,
			Window:      cfg.Lockout.Window,
		},
		LockoutEnabled: cfg.Lockout.Enabled,
		CORSConfig:     middleware.DefaultCORSConfig(cfg.Security.AllowedOrigins),
		RequestTimeout: cfg.Server.RequestTimeout,
		AdminRole:      cfg.JWT.AdminRole,
	}
	if cfg.RateLimit.Enabled {
		routerConfig.RateLimit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
		routerConfig.RateBurst = cfg.RateLimit.Burst
	}
	if cfg.Monitoring.PrometheusEnabled {
		routerConfig.MetricsPath = cfg.Monitoring.MetricsPath
	}

	r := router.NewRouter(authMiddleware, h, codeHandler, m, routerConfig)
	r.Setup()

	// Start the outbox processor and notifier in-process when asked to
	workersDone := make(chan struct{})
	if cfg.Worker.Embedded {
		broker, err := redis.NewRedisBroker(ctx, bootstrap.BrokerConfig(cfg.Redis), log.Zerolog())
		if err != nil {
			log.Fatal(err, "failed to connect to Redis")
		}
		defer broker.Close()

		workers, err := bootstrap.NewWorkers(cfg, stores, broker, log, m)
		if err != nil {
			log.Fatal(err, "failed to set up background workers")
		}
		go func() {
			defer close(workersDone)
			workers.Run(ctx)
		}()
	} else {
		close(workersDone)
	}

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info("Starting server", "port", cfg.Server.Port, "driver", stores.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err, "failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "server forced to shutdown")
	}

	select {
	case <-workersDone:
	case <-shutdownCtx.Done():
		log.Warn("Background workers did not stop in time")
	}

	log.Info("Server exited properly")
}
