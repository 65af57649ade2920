package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hive-corporation/phishwatch/internal/adapter/handler"
	"github.com/hive-corporation/phishwatch/internal/adapter/metrics"
	"github.com/hive-corporation/phishwatch/internal/bootstrap"
	"github.com/hive-corporation/phishwatch/internal/config"
	"github.com/hive-corporation/phishwatch/internal/logging"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		// no logger yet, the config decides its format
		os.Stderr.WriteString("❌ Failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logging.New(cfg.Logging, "phishwatch-api")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)
	log.Info().Msg("✅ Prometheus metrics initialized")

	assessor, err := bootstrap.Assessor(cfg, m, log)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to build assessor")
	}

	// HTTP router
	router := mux.NewRouter()

	restHandler := handler.NewRestHandler(assessor, handler.RestOptions{
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBatchSize:   cfg.Server.MaxBatchSize,
		Workers:        cfg.Scoring.Workers,
	}, log)
	restHandler.Register(router)

	// Metrics endpoint (requires authentication)
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})).Methods("GET")

	// Middleware
	router.Use(handler.LoggingMiddleware(log))
	router.Use(handler.AuthMiddleware(cfg.Server.AuthToken))
	if cfg.Server.AuthToken == "" {
		log.Warn().Msg("⚠️  Warning: REST_API_AUTH_TOKEN not set - auth disabled")
	}

	port := cfg.Server.RESTPort
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		log.Info().Str("port", port).Str("schema", string(assessor.Schema())).Msg("🚀 Phishwatch REST API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("❌ Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("🛑 Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("❌ Server forced to shutdown")
	}

	log.Info().Msg("✅ Server stopped gracefully")
}
