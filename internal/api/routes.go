package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all API routes.
func SetupRoutes(router *gin.Engine, handler *Handler, metrics *Metrics) {
	// Health checks (no /api/v1 prefix for standard health endpoints)
	router.GET("/health", handler.HealthCheck)
	router.GET("/ready", handler.ReadinessCheck)
	router.GET("/metrics", metrics.Handler())

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handler.HealthCheck)
		v1.GET("/ready", handler.ReadinessCheck)

		v1.GET("/summary", handler.Summary)
		v1.POST("/summary", handler.Summary)
		v1.GET("/trend", handler.Trend)
		v1.POST("/trend", handler.Trend)
		v1.GET("/risk-factors", handler.RiskFactors)
		v1.POST("/risk-factors", handler.RiskFactors)

		regions := v1.Group("/regions")
		{
			regions.GET("/top", handler.TopRegions)
			regions.POST("/top", handler.TopRegions)
		}

		v1.GET("/choropleth", handler.Choropleth)
		v1.POST("/choropleth", handler.Choropleth)
		v1.GET("/filters/options", handler.FilterOptions)

		v1.POST("/predict", handler.Predict)
		v1.POST("/insight", handler.Insight)

		exports := v1.Group("/export")
		{
			exports.GET("/csv", handler.ExportCSV)
			exports.GET("/xlsx", handler.ExportXLSX)
			exports.GET("/report", handler.ExportReport)
		}
	}
}
