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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jwalitptl/hospital-api/internal/bootstrap"
	"github.com/jwalitptl/hospital-api/internal/config"
	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/messaging/redis"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
)

func setupHealthCheck(port int, checks map[string]repository.Pinger, gatherer prometheus.Gatherer, log *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for name, p := range checks {
			if err := p.Ping(ctx); err != nil {
				log.Warn("Readiness check failed", "check", name, "error", err.Error())
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "Health check server failed")
			os.Exit(1)
		}
	}()

	return srv
}

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.New("info", false).Fatal(err, "Failed to load config")
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty).With("service", "worker")
	log.SetGlobal()

	if cfg.Store.Driver == "memory" {
		log.Fatal(errors.New("memory store is process-local"),
			"The worker needs a shared store; use worker.embedded in the api instead")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize stores
	stores, err := bootstrap.OpenStores(ctx, cfg, log)
	if err != nil {
		log.Fatal(err, "Failed to open store", "driver", cfg.Store.Driver)
	}
	defer stores.Close()

	// Initialize Redis broker
	broker, err := redis.NewRedisBroker(ctx, bootstrap.BrokerConfig(cfg.Redis), log.Zerolog())
	if err != nil {
		log.Fatal(err, "Failed to create Redis broker")
	}
	defer broker.Close()

	registry := prometheus.NewRegistry()
	m := metrics.New("hospital", registry)

	checks := make(map[string]repository.Pinger, len(stores.Checks)+1)
	for name, p := range stores.Checks {
		checks[name] = p
	}
	checks["redis"] = broker

	// Setup health check endpoints
	healthSrv := setupHealthCheck(cfg.Worker.HealthPort, checks, registry, log)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("Shutting down...")
		cancel()
	}()

	workers, err := bootstrap.NewWorkers(cfg, stores, broker, log, m)
	if err != nil {
		log.Fatal(err, "Failed to set up workers")
	}
	workers.Run(ctx)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "Health check server forced to shutdown")
	}
}
