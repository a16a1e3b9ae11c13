package middleware

import (
	"context"  // Context for the role lookup
	"net/http" // HTTP status codes
	"time"     // Lookup timeout

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging
)

// RoleChecker reports whether a stored user holds a role
type RoleChecker interface {
	HasRole(ctx context.Context, userID, role string) (bool, error)
}

// RequireRole checks the user's role against the store on each request,
// so a role change takes effect before the token expires
func RequireRole(checker RoleChecker, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(UserIDKey)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		ok, err := checker.HasRole(ctx, userID, role)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"user_id": userID,
				"role":    role,
				"error":   err.Error(),
			}).Warn("Role check failed")
		}
		if err != nil || !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": role + " access required"})
			return
		}
		c.Next()
	}
}
