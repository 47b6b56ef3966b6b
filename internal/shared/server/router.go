package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"audit-backend/internal/audits"
	"audit-backend/internal/progress"
	"audit-backend/internal/resultcache"
	"audit-backend/internal/shared/config"
	"audit-backend/internal/shared/metrics"
	"audit-backend/internal/shared/server/middleware"
	"audit-backend/internal/shared/server/respond"
)

// RouterDeps carries the wired handlers the router needs.
type RouterDeps struct {
	Config       config.Config
	AuditHandler *audits.Handler
	ProgressHub  *progress.Hub
	Cache        *resultcache.Cache
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	if deps.AuditHandler != nil {
		deps.AuditHandler.RegisterRoutes(api)
	}
	if deps.ProgressHub != nil {
		api.GET("/audits/:id/progress", progress.WSHandler(deps.ProgressHub))
	}
	if deps.Cache != nil {
		api.POST("/cache/cleanup", func(c *gin.Context) {
			removed, err := deps.Cache.Cleanup()
			if err != nil {
				respond.Error(c, http.StatusInternalServerError, "internal_error", "cache cleanup failed", nil)
				return
			}
			respond.OK(c, gin.H{"removed": removed})
		})
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
