package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{"APP_PORT", "JWT_TTL", "BCRYPT_COST", "SESSION_PROFILE", "CREDENTIAL_URL", "IS_PROD", "REDIS_ADDR"} {
		t.Setenv(k, "")
	}

	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, bcrypt.DefaultCost, cfg.BcryptCost)
	assert.Equal(t, "default", cfg.SessionProfile)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Empty(t, cfg.CredentialURL)
	assert.False(t, cfg.IsProd)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("APP_PORT", "9000")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("BCRYPT_COST", "4")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("IS_PROD", "true")

	cfg := LoadConfig()

	assert.Equal(t, "9000", cfg.AppPort)
	assert.Equal(t, 2*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 4, cfg.BcryptCost)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.True(t, cfg.IsProd)
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("JWT_TTL", "soon")
	t.Setenv("BCRYPT_COST", "many")

	cfg := LoadConfig()

	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, bcrypt.DefaultCost, cfg.BcryptCost)
}

func TestConfig_DSN(t *testing.T) {
	cfg := &Config{DBUser: "app", DBPassword: "pw", DBHost: "db", DBPort: "3306", DBName: "consultancy"}
	assert.Equal(t, "app:pw@tcp(db:3306)/consultancy?parseTime=true", cfg.DSN())
}
