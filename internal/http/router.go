package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"placa-service/internal/db"
)

const detectPath = "/plates/detect"

// NewRouter builds the engine. database may be nil when history is disabled.
func NewRouter(handler *Handler, authMiddleware gin.HandlerFunc, env string, database *gorm.DB, log zerolog.Logger) *gin.Engine {
	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))

	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"*"},
		ExposeHeaders:   []string{"Content-Type", "Content-Disposition"},
		MaxAge:          12 * time.Hour,
	}))

	router.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/health/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		detectorErr := handler.plates.DetectorHealth(ctx)
		if detectorErr != nil {
			log.Warn().Err(detectorErr).Msg("detector not ready")
		}

		components := gin.H{
			"model_loaded":        handler.plates.ModelLoaded(),
			"detector":            detectorErr == nil,
			"ocr_available":       handler.plates.OCRAvailable(),
			"registry_configured": handler.plates.RegistryConfigured(),
		}
		ready := detectorErr == nil

		if database != nil {
			dbOK := db.HealthCheck(ctx, database) == nil
			components["database"] = dbOK
			ready = ready && dbOK
		}

		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "components": components})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "components": components})
	})

	handler.Register(router, authMiddleware)

	return router
}

// requestLogger logs failed requests and every detection call.
func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		if status < http.StatusBadRequest && path != detectPath {
			return
		}
		if raw != "" {
			path = path + "?" + raw
		}

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}
		event.
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Str("method", c.Request.Method).
			Str("path", path).
			Msg("http request")
	}
}
