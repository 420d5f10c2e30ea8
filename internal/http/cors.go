package http

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// wildcardOrigin allows any origin. Credentials are never allowed with it.
const wildcardOrigin = "*"

// createCORSMiddleware returns the CORS middleware for the event and
// subscription API, or nil when CORS is disabled or no origin is configured.
// The API is called server to server, so CORS is off unless a dashboard needs it.
func createCORSMiddleware(enabled bool, origins []string, logger *slog.Logger) gin.HandlerFunc {
	if !enabled {
		return nil
	}

	if len(origins) == 0 {
		logger.Warn("CORS enabled but no origins configured - CORS will not be applied")
		return nil
	}

	config := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders:  []string{"Content-Type", "X-Request-Id"},
		ExposeHeaders: []string{"X-Request-Id", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}

	if slices.Contains(origins, wildcardOrigin) {
		config.AllowAllOrigins = true
		logger.Warn("CORS enabled for all origins")
	} else {
		config.AllowOrigins = origins
		config.AllowCredentials = true
		logger.Info("CORS enabled",
			slog.Int("origin_count", len(origins)),
			slog.Any("origins", origins))
	}

	return cors.New(config)
}
