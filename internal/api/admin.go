package api

import (
	"consultancy_auth/internal/credential" // Credential service
	"consultancy_auth/internal/utils"      // Cache helpers
	"context"                              // Request timeouts
	"errors"                               // Sentinel error checks
	"net/http"                             // HTTP status codes
	"strconv"                              // String conversion

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Structured logging
)

// userPagesKey is a Redis set holding every cached admin listing key
var userPagesKey = utils.CacheKey("admin", "users", "keys")

// ListUsersHandler returns a page of users for the admin dashboard
func ListUsersHandler(svc *credential.Service, rdb redis.Cmdable) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := 1      // Default page number
		pageSize := 20 // Default page size
		if p := c.Query("page"); p != "" {
			if v, err := strconv.Atoi(p); err == nil && v > 0 {
				page = v
			}
		}
		// Page size is capped at 100
		if ps := c.Query("page_size"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
				pageSize = v
			}
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		cacheKey := utils.CacheKey("admin", "users", "page="+strconv.Itoa(page), "size="+strconv.Itoa(pageSize))
		var cached credential.UserPage
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			c.JSON(http.StatusOK, pageResponse(&cached, true))
			return
		}

		result, err := svc.ListUsers(ctx, page, pageSize)
		if err != nil {
			if errors.Is(err, credential.ErrPageOutOfRange) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Page out of range"})
				return
			}
			logrus.WithError(err).Error("Failed to list users")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
			return
		}
		if err := utils.SetCache(ctx, rdb, cacheKey, result, utils.CacheTTL); err == nil && rdb != nil {
			_ = rdb.SAdd(ctx, userPagesKey, cacheKey).Err()
		}
		c.JSON(http.StatusOK, pageResponse(result, false))
	}
}

// invalidateUserPages drops every cached admin listing page
func invalidateUserPages(ctx context.Context, rdb redis.Cmdable) {
	if rdb == nil {
		return
	}
	keys, err := rdb.SMembers(ctx, userPagesKey).Result()
	if err != nil {
		logrus.WithError(err).Warn("Failed to read cached user pages")
		return
	}
	if err := utils.DeleteCache(ctx, rdb, append(keys, userPagesKey)...); err != nil {
		logrus.WithError(err).Warn("Failed to invalidate cached user pages")
	}
}

func pageResponse(p *credential.UserPage, cached bool) gin.H {
	return gin.H{
		"users":       p.Users,      // List of users
		"page":        p.Page,       // Current page
		"page_size":   p.PageSize,   // Page size
		"total":       p.Total,      // Total number of users
		"total_pages": p.TotalPages, // Total pages
		"cached":      cached,       // Whether the response came from cache
	}
}
