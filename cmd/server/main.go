package main

import (
	"consultancy_auth/internal/api"        // HTTP handlers and routes
	"consultancy_auth/internal/config"     // Configuration
	"consultancy_auth/internal/credential" // Credential service
	"consultancy_auth/internal/db"         // Database connection
	"consultancy_auth/internal/events"     // Auth event publishing
	"consultancy_auth/internal/utils"      // Token signing, logger setup
	"context"                              // context package is needed for Redis operations

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	utils.SetupLogger(cfg.IsProd)
	if cfg.JWTSecret == "" {
		logrus.Fatal("JWT_SECRET is required")
	}

	// Without a database name the service keeps users in memory
	var repo credential.Repository
	if cfg.DBName == "" {
		logrus.Warn("DB_NAME not set, users are kept in memory and lost on restart")
		repo = credential.NewMemoryRepository(cfg.BcryptCost)
	} else {
		conn, err := db.Open(cfg.DSN(), !cfg.IsProd)
		if err != nil {
			logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
		}
		repo = credential.NewGormRepository(conn, cfg.BcryptCost)
	}

	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})

	// Test Redis connection; the cache is optional
	var cache redis.Cmdable = redisClient
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logrus.WithError(err).Warn("Redis unavailable, response caching disabled")
		cache = nil
	}

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	svc := credential.NewService(
		repo,
		utils.Signer{Secret: cfg.JWTSecret, TTL: cfg.JWTTTL},
		events.NewAMQPPublisher(cfg.RabbitMQURL),
	)
	r := api.NewRouter(api.Deps{Service: svc, Redis: cache, JWTSecret: cfg.JWTSecret})

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	logrus.Info("Server running on " + cfg.AppPort) // Log server start
	if err := r.Run(":" + cfg.AppPort); err != nil { // Start the server on port cfg.AppPort
		logrus.Fatalf("server stopped: %v", err)
	}
}
