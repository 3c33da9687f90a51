package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, apiAccessKey string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/health"},
	}))

	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, apiAccessKey)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string) {
	// Calendar subscription feeds stay public so calendar clients can poll them.
	r.GET("/calendars/:id", handler.GetCalendar)
	r.GET("/health", handler.GetHealth)

	api := r.Group("/api")
	if apiAccessKey != "" {
		api.Use(authMiddleware(apiAccessKey))
		slog.Info("API authentication enabled")
	} else {
		slog.Warn("API authentication disabled (API_ACCESS_KEY not set)")
	}
	{
		api.GET("/plans", handler.ListPlans)
		api.POST("/plans", handler.CreatePlan)
		api.GET("/plans/:id", handler.GetPlan)
		api.PATCH("/plans/:id", handler.UpdatePlan)
		api.DELETE("/plans/:id", handler.DeletePlan)
		api.POST("/plans/:id/populate", handler.PopulatePlan)
		api.POST("/plans/:id/import-feed", handler.ImportFeed)
		api.GET("/plans/:id/items", handler.ListItems)
		api.POST("/plans/:id/items", handler.CreateItem)
		api.POST("/plans/:id/bulk", handler.RunBulk)
		api.POST("/plans/:id/batch/:kind", handler.StartBatch)
		api.POST("/plans/:id/sync", handler.SyncPlan)

		api.GET("/items/:id", handler.GetItem)
		api.PATCH("/items/:id", handler.UpdateItem)
		api.DELETE("/items/:id", handler.DeleteItem)
		api.POST("/items/:id/publish", handler.PublishItem)
		api.POST("/items/:id/generate", handler.GenerateItem)
		api.GET("/items/:id/preview", handler.GetPreview)
		api.DELETE("/items/:id/preview", handler.DiscardPreview)
		api.POST("/items/:id/apply", handler.ApplyItem)

		api.GET("/batch", handler.GetBatch)
		api.POST("/batch/cancel", handler.CancelBatch)
		api.GET("/batch/stream", handler.StreamBatch)

		api.GET("/provider/calendars", handler.ListProviderCalendars)
		api.GET("/presets", handler.ListPresets)
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":     "Content Calendar",
			"version":     handler.version,
			"description": "Content calendar planning, generation and publishing engine",
			"endpoints": map[string]string{
				"calendar": "/calendars/<plan id>",
				"health":   "/health",
				"plans":    "/api/plans",
				"items":    "/api/items/<id>",
				"batch":    "/api/batch",
				"presets":  "/api/presets",
			},
			"api_status": map[string]interface{}{
				"auth_required": apiAccessKey != "",
				"header":        "X-API-Key",
			},
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

// authMiddleware creates authentication middleware for API endpoints
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if providedKey != apiAccessKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
