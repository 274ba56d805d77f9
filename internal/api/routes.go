package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gimat/hydrocast/internal/api/handlers"
	"github.com/gimat/hydrocast/internal/database"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Services  Services  `json:"services"`
}

type Services struct {
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

// SetupRoutes wires the HTTP surface of the forecasting core.
func SetupRoutes(router *gin.Engine, db *database.PostgresDB, redis *database.RedisClient, forecast *handlers.ForecastHandler, topology *handlers.TopologyHandler) {
	router.GET("/health", healthCheck(db, redis))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/forecast", forecast.CreateForecast)
		v1.GET("/forecast/models", forecast.ListModels)
		v1.POST("/evaluate", forecast.Evaluate)

		stations := v1.Group("/stations")
		{
			stations.GET("/:id/neighbors", topology.GetNeighbors)
		}
	}
}

func healthCheck(db *database.PostgresDB, redis *database.RedisClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC(),
			Services:  Services{Database: "healthy", Redis: "healthy"},
		}

		if err := db.HealthCheck(c.Request.Context()); err != nil {
			response.Status = "degraded"
			response.Services.Database = "unhealthy"
		}
		if err := redis.HealthCheck(c.Request.Context()); err != nil {
			response.Status = "degraded"
			response.Services.Redis = "unhealthy"
		}

		status := http.StatusOK
		if response.Status != "healthy" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, response)
	}
}
