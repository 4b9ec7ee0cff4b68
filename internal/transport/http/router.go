package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"

	"github.com/tripradar/tripradar/internal/health"
	"github.com/tripradar/tripradar/internal/transport/http/handler"
	"github.com/tripradar/tripradar/internal/transport/http/middleware"
)

func NewRouter(logger *slog.Logger, searches *handler.SearchHandler, checker *health.Checker) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.ClientID())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, checker.Liveness(c.Request.Context()))
	})
	r.GET("/readyz", func(c *gin.Context) {
		result := checker.Readiness(c.Request.Context())
		status := http.StatusOK
		if result.Status != "up" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, result)
	})

	s := r.Group("/searches")
	{
		s.POST("", searches.Create)
		s.GET("/:id", searches.Get)
		s.DELETE("/:id", searches.Cancel)

		owned := s.Group("", middleware.RequireClient())
		{
			owned.GET("", searches.History)
			owned.GET("/saved", searches.Saved)
			owned.POST("/:id/save", searches.Save)
			owned.DELETE("/:id/save", searches.Unsave)
			owned.POST("/:id/hide", searches.Hide)
			owned.DELETE("/:id/hide", searches.Unhide)
			owned.PATCH("/:id/name", searches.Rename)
		}
	}

	return r
}
