package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"qr-code-tracker/cache"
	"qr-code-tracker/config"
	"qr-code-tracker/connectivity"
	"qr-code-tracker/handler"
	"qr-code-tracker/limiter"
	appLogger "qr-code-tracker/logger"
	"qr-code-tracker/middleware"
	redisClient "qr-code-tracker/redis"
	"qr-code-tracker/storage"
	"qr-code-tracker/vault"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

func main() {
	// Initialize logger
	appLogger.Initialize()

	// Load configuration
	cfg := config.MustLoadConfig()
	log.Info().Msg("Configuration loaded successfully")

	// Remote authoritative tier
	rdb := redisClient.NewClient(cfg.Redis)
	remoteStore := storage.NewRemoteStore(rdb, cfg.Security.ScanLogLimit)

	// Encrypted local tier
	badgerMap, err := vault.OpenBadger(cfg.Local.Path, cfg.Local.InMemory)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Local.Path).Msg("Failed to open local store")
	}
	localStore := storage.NewLocalStore(vault.New(badgerMap))

	// Connectivity monitor driving tier selection
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	monitor := connectivity.NewMonitor(remoteStore.Ping, time.Duration(cfg.Redis.PingInterval)*time.Second)
	monitor.Start(rootCtx)

	tieredStore := storage.NewTieredStore(remoteStore, localStore, monitor)
	log.Info().Str("active_tier", string(tieredStore.ActiveTier())).Msg("Tiered record store initialized")

	// Announce tier flips as they happen; operations pick the tier up on
	// their own via the signal.
	tierChanges, unsubscribeTier := monitor.Subscribe()
	defer unsubscribeTier()
	go func() {
		for online := range tierChanges {
			tier := storage.TierLocal
			if online {
				tier = storage.TierRemote
			}
			log.Warn().Str("active_tier", string(tier)).Msg("Active storage tier changed")
		}
	}()

	// Record cache for the redirect hot path
	var cacheClient *cache.Cache
	if cfg.Cache.Enabled {
		cacheClient, err = cache.New(cfg.Cache)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize cache")
		}
	} else {
		log.Info().Msg("Cache disabled in configuration")
	}

	// Sliding-window creation limiter
	createLimiter := limiter.New(
		time.Duration(cfg.RateLimit.CreateWindowSecs)*time.Second,
		cfg.RateLimit.CreateLimit,
	)

	// Create handler with dependency injection
	recordHandler := handler.NewRecordHandler(tieredStore, cacheClient, createLimiter, monitor, cfg)

	// Set up router
	r := mux.NewRouter()

	// Apply global middleware
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	r.Use(middleware.RequestLogger)
	r.Use(rateLimiter.Limit)

	// Register routes
	r.HandleFunc("/health", recordHandler.HealthCheck).Methods("GET")
	r.HandleFunc("/cache/metrics", recordHandler.CacheMetrics).Methods("GET")
	r.HandleFunc("/api/records", recordHandler.CreateRecord).Methods("POST")
	r.HandleFunc("/api/records", recordHandler.ListRecords).Methods("GET")
	r.HandleFunc("/api/records/{id}", recordHandler.GetRecord).Methods("GET")
	r.HandleFunc("/api/records/{id}/stats", recordHandler.RecordStats).Methods("GET")
	r.HandleFunc("/api/records/{id}/watch", recordHandler.WatchRecord).Methods("GET")
	r.HandleFunc("/api/logo", recordHandler.UploadLogo).Methods("POST")
	r.HandleFunc("/qr/{id}", recordHandler.GenerateQR).Methods("GET")
	r.HandleFunc("/redirect", recordHandler.Redirect).Methods("GET")

	// Configure HTTP server
	serverAddress := fmt.Sprintf("%s:%s", cfg.WebServer.IP, cfg.WebServer.Port)
	server := &http.Server{
		Addr:         serverAddress,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.WebServer.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WebServer.WriteTimeout) * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("address", serverAddress).
			Str("scheme", cfg.WebServer.Scheme).
			Msg("Starting server")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.WebServer.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	monitor.Stop()

	if cacheClient != nil {
		cacheClient.Close()
	}

	if err := badgerMap.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close local store")
	}

	if err := rdb.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close Redis connection")
	}

	log.Info().Msg("Server stopped gracefully")
}
