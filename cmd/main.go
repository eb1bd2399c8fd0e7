// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Shivanand-hulikatti/gym-capacity/internal/archive"
	"github.com/Shivanand-hulikatti/gym-capacity/internal/config"
	"github.com/Shivanand-hulikatti/gym-capacity/internal/database"
	"github.com/Shivanand-hulikatti/gym-capacity/internal/events"
	"github.com/Shivanand-hulikatti/gym-capacity/internal/handler"
	"github.com/Shivanand-hulikatti/gym-capacity/internal/metrics"
	"github.com/Shivanand-hulikatti/gym-capacity/internal/model"
	"github.com/Shivanand-hulikatti/gym-capacity/internal/repository"
	"github.com/Shivanand-hulikatti/gym-capacity/internal/sensorfeed"
	"github.com/Shivanand-hulikatti/gym-capacity/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

const serviceName = "gym-capacity"

var defaultFacilities = []model.FacilityDefinition{
	{ID: "gym-123", Name: "Central Fitness", MaxCapacity: 100, SensorFullness: 75},
}

func main() {
	cfg := config.Load(serviceName)
	log := cfg.Log

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Storage backing
	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to open store", "backend", cfg.StoreBackend, "error", err)
	}
	defer store.Close()

	// 2. Optional integrations
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	opts := []service.Option{service.WithLogger(log), service.WithMetrics(m)}
	if cfg.ReservationEventsEnabled() {
		publisher, err := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaReservationTopic, log)
		if err != nil {
			log.Fatal("Failed to create reservation publisher", "error", err)
		}
		defer publisher.Close()
		opts = append(opts, service.WithNotifier(publisher))
		log.Info("Publishing admitted reservations", "topic", cfg.KafkaReservationTopic)
	}

	var history handler.SensorHistory
	var recorder sensorfeed.Recorder
	if cfg.MongoURI != "" {
		a, err := archive.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoConnTimeout, log)
		if err != nil {
			log.Fatal("Failed to connect sensor archive", "error", err)
		}
		defer a.Close(context.Background())
		history, recorder = a, a
	}

	// 3. Wire up layers
	ctrl := service.NewAdmissionController(store, opts...)
	if err := seed(ctx, ctrl, cfg.FacilitiesFile); err != nil {
		log.Fatal("Failed to register facilities", "error", err)
	}
	ingestor := sensorfeed.NewIngestor(ctrl, recorder, log)

	var wg sync.WaitGroup
	if cfg.SensorFeedEnabled() {
		consumer, err := sensorfeed.NewConsumer(cfg.KafkaBrokers, cfg.KafkaSensorTopic, cfg.KafkaSensorGroup, ingestor, log)
		if err != nil {
			log.Fatal("Failed to create sensor consumer", "error", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info("Sensor feed started", "topic", cfg.KafkaSensorTopic, "group", cfg.KafkaSensorGroup)
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Sensor feed stopped", "error", err)
			}
		}()
		defer consumer.Close()
	}

	limiter := handler.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	limiter.StartJanitor(ctx)

	h := handler.NewFacilityHandler(ctrl, ingestor, history, log)
	router := handler.NewRouter(h, handler.RouterConfig{
		CORSOrigin: cfg.CORSOrigin,
		Limiter:    limiter,
		Metrics:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Log:        log,
	})

	// 4. Start server with graceful shutdown
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server listening", "port", cfg.Port, "backend", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down server")
	case err := <-serverErr:
		log.Error("Server error", "error", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", "error", err)
	}
	wg.Wait()
	log.Info("Server stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (repository.FacilityStore, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := database.NewPool(ctx, cfg.DB.DSN(), cfg.DB.MaxConns, cfg.Log.Logger)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return repository.NewPostgresStore(pool), nil

	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return repository.NewRedisStore(rdb,
			repository.WithRedisPrefix(cfg.RedisPrefix),
			repository.WithRedisMaxRetries(cfg.RedisMaxRetries),
		), nil

	default:
		return repository.NewMemoryStore(), nil
	}
}

// seed registers the facilities listed in path, or the default facility when
// path is empty.
func seed(ctx context.Context, ctrl *service.AdmissionController, path string) error {
	defs := defaultFacilities
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read facilities file: %w", err)
		}
		defs = nil
		if err := json.Unmarshal(data, &defs); err != nil {
			return fmt.Errorf("parse facilities file: %w", err)
		}
	}
	return ctrl.RegisterFacilities(ctx, defs)
}
