// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"fooddispatch/internal/http/handlers"
	"fooddispatch/internal/http/middleware"
	"fooddispatch/internal/modules/location"
)

type RouterDeps struct {
	Dispatch handlers.Dispatcher
	Location *location.Service
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
}

func NewRouter(deps RouterDeps, log zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.Logging(log))

	dispatchHandler := handlers.NewDispatchHandler(deps.Dispatch)
	r.POST("/api/orders/:id/dispatch", dispatchHandler.Dispatch)
	r.POST("/api/orders/:id/cancel", dispatchHandler.Cancel)
	r.GET("/api/orders/:id/assignments", dispatchHandler.History)
	r.GET("/api/assignments/:id", dispatchHandler.Get)
	r.POST("/api/assignments/:id/claim", dispatchHandler.Claim)

	if deps.Location != nil {
		locationHandler := handlers.NewLocationHandler(deps.Location)
		r.PUT("/api/drivers/:id", locationHandler.Register)
		r.PUT("/api/drivers/:id/location", locationHandler.Update)
		r.PUT("/api/drivers/:id/availability", locationHandler.SetAvailability)
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	return r
}
