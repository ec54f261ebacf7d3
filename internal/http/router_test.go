package http_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpapi "saferide/internal/http"
	"saferide/internal/metrics"
	"saferide/internal/modules/dispatch"
	"saferide/internal/modules/driver"
	"saferide/internal/modules/hazard"
	"saferide/internal/modules/routing"
	"saferide/internal/modules/trip"
)

func newRouter(t *testing.T, gatherer prometheus.Gatherer) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	provider := hazard.NewProvider(&hazard.StaticSource{}, 0, nil, nil)
	store := driver.NewMemStore()
	trips := trip.NewService(trip.NewMemStore(), nil)
	estimator := routing.NewEstimator(routing.NewNaivePlanner(0, 0), nil, routing.Config{}, nil, nil)
	return httpapi.NewRouter(httpapi.RouterDeps{
		Trips:     trips,
		Drivers:   driver.NewService(store, nil),
		Dispatch:  dispatch.NewCoordinator(dispatch.Deps{Drivers: store, Trips: trips, Hazards: provider, Estimator: estimator}, dispatch.Config{}),
		Estimator: estimator,
		Hazards:   provider,
		Gatherer:  gatherer,
	})
}

func TestHealth(t *testing.T) {
	r := newRouter(t, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := metrics.NewPromRecorder(reg)
	require.NoError(t, err)
	rec.SetHazardZones(3)

	r := newRouter(t, reg)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "saferide_hazard_zones 3"), w.Body.String())
}

func TestMetricsEndpointDisabled(t *testing.T) {
	r := newRouter(t, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
