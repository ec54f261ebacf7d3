// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"saferide/internal/http/handlers"
	"saferide/internal/http/middleware"
	"saferide/internal/logging"
	"saferide/internal/modules/dispatch"
	"saferide/internal/modules/driver"
	"saferide/internal/modules/routing"
	"saferide/internal/modules/trip"
)

type RouterDeps struct {
	Trips     *trip.Service
	Drivers   *driver.Service
	Dispatch  *dispatch.Coordinator
	Estimator *routing.Estimator
	Hazards   handlers.Snapshots
	Log       logging.Logger
	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
}

func NewRouter(d RouterDeps) *gin.Engine {
	log := d.Log
	if log == nil {
		log = logging.NopLogger{}
	}
	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.Logging(log))

	api := r.Group("/api")

	tripHandler := handlers.NewTripHandler(d.Trips, d.Dispatch)
	api.POST("/trips", tripHandler.Create)
	api.GET("/trips/:id", tripHandler.Get)
	api.POST("/trips/:id/dispatch", tripHandler.Dispatch)
	api.POST("/trips/:id/cancel", tripHandler.Cancel)

	estimateHandler := handlers.NewEstimateHandler(d.Estimator, d.Hazards)
	api.POST("/estimates", estimateHandler.Create)

	driverHandler := handlers.NewDriverHandler(d.Drivers)
	api.POST("/drivers", driverHandler.Register)
	api.GET("/drivers/:id", driverHandler.Get)
	api.PUT("/drivers/:id/location", driverHandler.UpdateLocation)
	api.PUT("/drivers/:id/availability", driverHandler.SetAvailability)

	hazardHandler := handlers.NewHazardHandler(d.Hazards)
	api.GET("/hazards", hazardHandler.Near)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	return r
}
