package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"poscore/internal/config"
	"poscore/internal/infra"
	"poscore/internal/router"
	"poscore/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Pretty console in development, JSON everywhere else.
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.Env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := infra.NewTracerProvider(ctx, infra.TelemetryConfig{
		Enabled:       cfg.OTelEnabled,
		Endpoint:      cfg.OTelEndpoint,
		SamplingRatio: cfg.OTelSamplingRatio,
		ServiceName:   cfg.OTelServiceName,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start tracing")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL, infra.PoolConfig{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	if cfg.OTelEnabled {
		if err := infra.RegisterDBTracing(db); err != nil {
			log.Fatal().Err(err).Msg("failed to register db tracing")
		}
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	// Events are drained from Redis and forwarded to Kafka when brokers are
	// configured; otherwise they only reach the log.
	var publisher worker.EventPublisher = worker.LogPublisher{}
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		publisher = worker.NewKafkaPublisher(brokers, cfg.KafkaTopic)
		log.Info().Strs("brokers", brokers).Str("topic", cfg.KafkaTopic).Msg("publishing events to kafka")
	}
	breaker := infra.NewCircuitBreaker(infra.DefaultCBConfig("event-publisher"))
	workers := worker.StartWorkerPool(ctx, rdb, &worker.WorkerHandlers{
		Events: worker.NewEventWorker(publisher, breaker),
	}, cfg.WorkerPoolSize)

	r := router.New(cfg, db, rdb)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("POS core listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	cancel()
	workers.Wait()
	if err := publisher.Close(); err != nil {
		log.Warn().Err(err).Msg("event publisher close")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("tracer shutdown")
	}
	_ = rdb.Close()
	log.Info().Msg("server exited")
}
