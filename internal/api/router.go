package api

import (
	"consultancy_auth/internal/credential" // Credential service
	"consultancy_auth/internal/domain"     // Roles
	"consultancy_auth/internal/middleware" // JWT and role middleware
	"net/http"                             // HTTP status codes

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
)

// Deps are the collaborators the HTTP layer needs
type Deps struct {
	Service   *credential.Service
	Redis     redis.Cmdable // Optional; nil disables caching
	JWTSecret string
}

// NewRouter wires every route onto a fresh gin engine
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.CustomRecovery(func(c *gin.Context, _ any) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := middleware.JWTAuthMiddleware(d.JWTSecret)
	// Mounted both at the root and under the original /api/auth prefix
	for _, g := range []*gin.RouterGroup{&r.RouterGroup, r.Group("/api/auth")} {
		g.POST("/register", RegisterHandler(d.Service, d.Redis))
		g.POST("/login", LoginHandler(d.Service))
		g.GET("/me", auth, MeHandler(d.Service, d.Redis))
	}

	adminGroup := r.Group("/admin")
	adminGroup.Use(auth, middleware.RequireRole(d.Service, domain.RoleAdmin))
	adminGroup.GET("/users", ListUsersHandler(d.Service, d.Redis))

	return r
}
