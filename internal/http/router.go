// Package http serves harmonic constants from a staged tide model over a
// JSON API.
package http

import (
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"go.ngs.io/tidemodel/internal/usecase"
)

// SetupRouter creates and configures the Gin router.
func SetupRouter(model *usecase.Model, log logrus.FieldLogger) *gin.Engine {

	router := gin.Default()

	// Setup CORS middleware.
	corsConfig := cors.DefaultConfig()

	// Get allowed origins from environment variable.
	// Default to allow all origins if not specified.
	allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
	if allowedOrigins != "" {
		corsConfig.AllowOrigins = strings.Split(allowedOrigins, ",")
	} else {
		corsConfig.AllowAllOrigins = true
	}

	router.Use(cors.New(corsConfig))
	router.Use(LatencyMiddleware())

	// Create handler.
	handler := NewHandler(model, log)

	// API v1 routes.
	v1 := router.Group("/v1")
	// Harmonic constants.
	tides := v1.Group("/tides")
	tides.GET("/constants", handler.GetConstants)

	// Constituents.
	v1.GET("/constituents", handler.GetConstituents)

	// Health check.
	router.GET("/health", handler.HealthCheck)

	// Prometheus metrics.
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
