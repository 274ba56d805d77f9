package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gimat/hydrocast/internal/api"
	"github.com/gimat/hydrocast/internal/api/handlers"
	"github.com/gimat/hydrocast/internal/cache"
	"github.com/gimat/hydrocast/internal/config"
	"github.com/gimat/hydrocast/internal/database"
	"github.com/gimat/hydrocast/internal/logging"
	"github.com/gimat/hydrocast/internal/services"
	"github.com/gimat/hydrocast/internal/topology"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.Environment, cfg.LogLevel)

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	redis, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	cacheTTL, err := time.ParseDuration(cfg.Cache.TTL)
	if err != nil {
		log.Fatalf("Invalid cache TTL %q: %v", cfg.Cache.TTL, err)
	}

	observations := database.NewObservationRepository(db.Pool)
	topoRepo := database.NewTopologyRepository(db.Pool)

	topoCache := cache.NewRedisTopologyCache(redis.Client, cacheTTL, logger)
	decompCache := cache.NewRedisDecompositionCache(redis.Client, cacheTTL, logger)

	topoService := topology.NewService(topoRepo, topoCache, logger)

	warmer := topology.NewWarmer(topoService, cfg.Cache.WarmStations, cfg.Spatial.MaxHops, logger)
	if err := warmer.Start(cfg.Cache.WarmSchedule); err != nil {
		log.Fatalf("Failed to start topology warmer: %v", err)
	}
	defer warmer.Stop()

	timeouts := services.NewTimeoutManager(cfg.Timeouts, logger)
	defer timeouts.CancelAll()

	orchestrator := services.NewOrchestrator(
		cfg,
		observations,
		observations,
		services.NewDecomposer(cfg.Forecast.DecompositionLevels, logger),
		services.NewQualityScreen(cfg.Forecast.OutlierSigma, logger),
		services.NewTrendPredictor(cfg.Forecast.SeasonalPeriod, logger),
		services.NewFluctuationPredictor(cfg.Forecast.HoldoutRatio, logger),
		services.NewSpatialPredictor(topoService, observations, cfg.Spatial, logger),
		services.NewCombiner(cfg.Forecast.ConfidenceLevel, cfg.Forecast.AdaptiveWeights, logger),
		services.NewEvaluator(logger),
		timeouts,
		decompCache,
		logger,
	)

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	forecastHandler := handlers.NewForecastHandler(orchestrator, logger)
	topologyHandler := handlers.NewTopologyHandler(topoService, cfg.Spatial.MaxHops)
	api.SetupRoutes(router, db, redis, forecastHandler, topologyHandler)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Infof("Server starting on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}
