package api

import (
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/un4givn/FlipForce/internal/api/handlers"
	"github.com/un4givn/FlipForce/internal/config"
	"github.com/un4givn/FlipForce/internal/metrics"
	"github.com/un4givn/FlipForce/internal/services"
)

func SetupRouter(cfg config.ServerConfig, store *services.Store, worker *services.TrackerWorker) *gin.Engine {
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.CORSOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	corsConfig.AllowCredentials = false
	router.Use(cors.New(corsConfig))

	router.Use(requestMetrics())

	// Initialize handlers
	seriesHandler := handlers.NewSeriesHandler(store)
	trackerHandler := handlers.NewTrackerHandler(worker)

	// API routes
	api := router.Group("/api")
	{
		series := api.Group("/series")
		{
			series.GET("", seriesHandler.ListSeries)
			series.GET("/movers", seriesHandler.GetMarketMovers)
			series.GET("/:id", seriesHandler.GetSeries)
			series.GET("/:id/inventory", seriesHandler.GetInventory)
			series.GET("/:id/sold", seriesHandler.GetSoldEvents)
			series.GET("/:id/swaps", seriesHandler.GetSwaps)
			series.GET("/:id/evroi", seriesHandler.GetEVROIHistory)
			series.GET("/:id/counters", seriesHandler.GetCounterHistory)
			series.GET("/:id/value", seriesHandler.GetValueHistory)
			series.POST("/:id/refresh", trackerHandler.TriggerCycle)
		}

		tracker := api.Group("/tracker")
		{
			tracker.GET("/status", trackerHandler.GetStatus)
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Prometheus scrape endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// requestMetrics records per-route request counts and latency. The route
// template is used as the path label so ids don't explode cardinality.
func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method, path, strconv.Itoa(c.Writer.Status()),
		).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(
			c.Request.Method, path,
		).Observe(time.Since(start).Seconds())
	}
}
