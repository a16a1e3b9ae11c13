package config

import (
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"time"    // For token lifetimes

	"github.com/joho/godotenv"   // For loading .env files
	"golang.org/x/crypto/bcrypt" // Default bcrypt cost
)

// Config holds the application configuration
type Config struct {
	AppPort        string        // Application port
	DBUser         string        // Database user
	DBPassword     string        // Database password
	DBHost         string        // Database host
	DBPort         string        // Database port
	DBName         string        // Database name
	JWTSecret      string        // JWT secret key
	JWTTTL         time.Duration // Lifetime of issued tokens
	BcryptCost     int           // Cost factor for password hashing
	RedisAddr      string        // Redis server address
	RedisPass      string        // Redis password
	RedisDB        int           // Redis database number
	RabbitMQURL    string        // Broker for auth events, empty disables publishing
	SessionProfile string        // Storage partition used by the session CLI
	CredentialURL  string        // Credential service base URL for the session CLI
	IsProd         bool          // Is production environment
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	return &Config{
		AppPort:        envOr("APP_PORT", "8080"),                         // Application port
		DBUser:         os.Getenv("DB_USER"),                              // Database user
		DBPassword:     os.Getenv("DB_PASSWORD"),                          // Database password
		DBHost:         envOr("DB_HOST", "127.0.0.1"),                     // Database host
		DBPort:         envOr("DB_PORT", "3306"),                          // Database port
		DBName:         os.Getenv("DB_NAME"),                              // Database name
		JWTSecret:      os.Getenv("JWT_SECRET"),                           // JWT secret key
		JWTTTL:         envDuration("JWT_TTL", 24*time.Hour),              // One day by default
		BcryptCost:     envInt("BCRYPT_COST", bcrypt.DefaultCost),         // bcrypt cost
		RedisAddr:      envOr("REDIS_ADDR", "localhost:6379"),             // Redis server address
		RedisPass:      os.Getenv("REDIS_PASS"),                           // Redis password
		RedisDB:        redisDB,                                           // Redis database number
		RabbitMQURL:    os.Getenv("RABBITMQ_URL"),                         // Optional broker URL
		SessionProfile: envOr("SESSION_PROFILE", "default"),               // Session storage partition
		CredentialURL:  os.Getenv("CREDENTIAL_URL"),                       // Empty means demo mode
		IsProd:         os.Getenv("IS_PROD") == "true",                    // Is production environment
	}
}

// DSN builds the MySQL Data Source Name
func (c *Config) DSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true"
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
