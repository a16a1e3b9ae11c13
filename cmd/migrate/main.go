package main

import (
	"consultancy_auth/internal/config" // Custom import path (Config)
	"consultancy_auth/internal/db"     // Custom import path (Database)
	"consultancy_auth/internal/utils"  // Logger setup

	"github.com/sirupsen/logrus"
)

// Main entry point for migration
func main() {
	cfg := config.LoadConfig() // Load configuration
	utils.SetupLogger(cfg.IsProd)

	conn, err := db.Open(cfg.DSN(), !cfg.IsProd)
	if err != nil {
		logrus.Fatalf("failed to connect database: %v", err) // Log fatal error if connection fails
	}
	if err := db.Migrate(conn); err != nil {
		logrus.Fatalf("migration failed: %v", err) // Log fatal error if migration fails
	}
}
