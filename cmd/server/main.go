package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"venue_ops_backend/internal/config"
	"venue_ops_backend/internal/database"
	"venue_ops_backend/internal/metrics"
	"venue_ops_backend/internal/middleware"
	"venue_ops_backend/internal/realtime"
	"venue_ops_backend/internal/router"
	"venue_ops_backend/pkg/tracing"
	"venue_ops_backend/pkg/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.Load()

	// Initialize Logger
	utils.InitLogger(cfg.Logger.Level, cfg.Logger.Pretty)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.TTL)
	if cfg.JWT.Secret == "" {
		log.Warn().Msg("JWT_SECRET is not set, using the development signing key")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.InitTracer(tracing.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.Tracing.ServiceName,
		JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracer")
	}

	// Initialize Database
	db, err := database.Connect(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if cfg.Postgres.ApplySchema {
		if err := database.ApplySchema(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply database schema")
		}
	}
	if err := database.Seed(ctx, db, cfg.Admin.DefaultPassword); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed database")
	}

	var broadcaster realtime.Broadcaster
	if cfg.Redis.Addr != "" {
		rb, err := realtime.NewRedisBroadcaster(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Channel)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to redis")
		}
		broadcaster = rb
	} else {
		log.Info().Msg("REDIS_ADDR not set, realtime events stay in process")
		broadcaster = realtime.NewLocalBroadcaster()
	}
	defer func() {
		utils.LogWarn(broadcaster.Close(), "Failed to close realtime broadcaster")
	}()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(utils.GinLogger())
	engine.Use(m.Middleware())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader, "Content-Disposition"}
	corsConfig.AllowCredentials = true
	engine.Use(cors.New(corsConfig))

	utils.LogDebug("Middleware chain ready", map[string]interface{}{"cors_origins": cfg.Server.CORSOrigins})
	router.Setup(engine, router.Deps{
		DB:          db,
		Config:      cfg,
		Broadcaster: broadcaster,
		Metrics:     m,
		Gatherer:    registry,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.LogInfo("Server starting", map[string]interface{}{"port": cfg.Server.Port, "env": cfg.Server.AppEnv})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.LogError(err, "Server forced to shutdown")
	}
	if err := tracing.Shutdown(shutdownCtx, tp); err != nil {
		utils.LogError(err, "Failed to flush traces")
	}
	log.Info().Msg("Server exited")
}
