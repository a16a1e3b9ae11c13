package main

import (
	"consultancy_auth/internal/config"  // Configuration
	"consultancy_auth/internal/session" // Session store
	"consultancy_auth/internal/shell"   // Interactive commands
	"consultancy_auth/internal/utils"   // Demo token signing, logger setup
	"context"                           // Store lifetime
	"flag"                              // Command line flags
	"os"                                // Standard streams
	"sync/atomic"                       // Shell handed to the change listener

	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

// Opens one "tab" on the profile's session partition in Redis. Run several
// in parallel to see changes mirrored between them.
func main() {
	cfg := config.LoadConfig() // Load configuration

	profile := flag.String("profile", cfg.SessionProfile, "storage partition to join")
	remote := flag.String("remote", cfg.CredentialURL, "credential service base URL, empty for demo mode")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	utils.SetupLogger(cfg.IsProd)
	logrus.SetOutput(os.Stderr)
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})
	defer func() { _ = rdb.Close() }()

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}

	opts := session.Options{
		Storage:    session.NewRedisStorage(rdb, *profile),
		BcryptCost: cfg.BcryptCost,
		Logger:     logrus.StandardLogger(),
	}
	if *remote != "" {
		opts.Authenticator = session.NewRemoteAuthenticator(*remote)
	} else {
		secret := cfg.JWTSecret
		if secret == "" {
			logrus.Warn("JWT_SECRET not set, demo tokens are signed with a development key")
			secret = "demo-secret"
		}
		opts.Signer = utils.Signer{Secret: secret, TTL: cfg.JWTTTL}
	}

	var app atomic.Pointer[shell.App]
	opts.OnChange = func(key string) {
		if a := app.Load(); a != nil {
			a.Notify(key)
		}
	}
	store, err := session.New(ctx, opts)
	if err != nil {
		logrus.Fatalf("failed to open session: %v", err)
	}
	defer store.Close()

	a := shell.New(store, os.Stdout)
	app.Store(a)
	a.Run(ctx, os.Stdin)
}
