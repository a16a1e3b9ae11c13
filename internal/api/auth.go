package api

import (
	"consultancy_auth/internal/credential" // Credential service
	"consultancy_auth/internal/middleware" // Identity context keys
	"consultancy_auth/internal/utils"      // Cache helpers
	"context"                              // Request timeouts
	"errors"                               // Sentinel error checks
	"net/http"                             // HTTP status codes
	"time"                                 // Timestamps and timeouts

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Structured logging
)

// requestTimeout bounds the DB work of a single request
const requestTimeout = 5 * time.Second

// RegisterRequest is the registration payload
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`                                        // Full name
	Email    string `json:"email" binding:"required,email"`                                 // Valid email address
	Password string `json:"password" binding:"required,min=6"`                              // At least 6 characters
	Role     string `json:"role" binding:"omitempty,oneof=admin consultant client student"` // Optional role
	Phone    string `json:"phone"`                                                          // Optional phone
}

// LoginRequest is the login payload
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"` // Valid email address
	Password string `json:"password" binding:"required"`    // Non-empty password
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	Msg string `json:"msg"`
	credential.AuthResult
}

// RegisterHandler creates a user and returns a signed token. Cached admin
// listings are dropped so the new user shows up at once.
func RegisterHandler(svc *credential.Service, rdb redis.Cmdable) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": bindErrors(err)})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()
		res, err := svc.Register(ctx, credential.RegisterInput{
			Name:     req.Name,
			Email:    req.Email,
			Password: req.Password,
			Role:     req.Role,
			Phone:    req.Phone,
		})
		if err != nil {
			if errors.Is(err, credential.ErrUserExists) {
				c.JSON(http.StatusBadRequest, gin.H{"error": credential.ErrUserExists.Error()})
				return
			}
			logrus.WithFields(logrus.Fields{
				"email": req.Email,
				"error": err.Error(),
			}).Error("Registration failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
			return
		}
		invalidateUserPages(ctx, rdb)
		logrus.WithFields(logrus.Fields{
			"user_id":   res.User.ID,
			"role":      res.User.Role,
			"type":      "register",
			"timestamp": time.Now().Format(time.RFC3339),
		}).Info("User registered")
		c.JSON(http.StatusOK, AuthResponse{Msg: "User registered successfully", AuthResult: *res})
	}
}

// LoginHandler authenticates a user and returns a signed token
func LoginHandler(svc *credential.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": bindErrors(err)})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()
		res, err := svc.Login(ctx, req.Email, req.Password)
		if err != nil {
			if errors.Is(err, credential.ErrInvalidCredentials) {
				c.JSON(http.StatusBadRequest, gin.H{"error": credential.ErrInvalidCredentials.Error()})
				return
			}
			logrus.WithFields(logrus.Fields{
				"email": req.Email,
				"error": err.Error(),
			}).Error("Login failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
			return
		}
		logrus.WithFields(logrus.Fields{
			"user_id":   res.User.ID,
			"type":      "login",
			"timestamp": time.Now().Format(time.RFC3339),
		}).Info("User logged in")
		c.JSON(http.StatusOK, AuthResponse{Msg: "Login successful", AuthResult: *res})
	}
}

// MeHandler returns the caller's public profile, cached in Redis
func MeHandler(svc *credential.Service, rdb redis.Cmdable) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(middleware.UserIDKey)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()
		cacheKey := utils.CacheKey("user", "profile", userID)
		var cached gin.H
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			c.JSON(http.StatusOK, gin.H{"user": cached["user"], "cached": true})
			return
		}
		user, err := svc.Profile(ctx, userID)
		if err != nil {
			if errors.Is(err, credential.ErrNotFound) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "User no longer exists"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
			return
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, gin.H{"user": user}, utils.CacheTTL)
		c.JSON(http.StatusOK, gin.H{"user": user, "cached": false})
	}
}
