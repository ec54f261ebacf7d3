// README: Hazard lookup handler.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"saferide/internal/modules/hazard"
	"saferide/internal/types"
)

const defaultHazardRadiusKm = 10.0

type HazardHandler struct {
	hazards Snapshots
}

func NewHazardHandler(hazards Snapshots) *HazardHandler {
	return &HazardHandler{hazards: hazards}
}

type hazardsResp struct {
	TakenAt time.Time     `json:"taken_at"`
	Zones   []hazard.Zone `json:"zones"`
}

// Near lists active zones around lat/lng, nearest first.
func (h *HazardHandler) Near(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		writeError(c, http.StatusBadRequest, "lat and lng query parameters are required")
		return
	}
	p := types.Point{Lat: lat, Lng: lng}
	if err := p.Validate(); err != nil {
		writeDomainError(c, err)
		return
	}
	radius := defaultHazardRadiusKm
	if v := c.Query("radius_km"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || r <= 0 {
			writeError(c, http.StatusBadRequest, "radius_km must be a positive number")
			return
		}
		radius = r
	}

	snap := h.hazards.Current()
	if snap == nil {
		writeError(c, http.StatusServiceUnavailable, "hazard data not loaded yet")
		return
	}
	zones := snap.ZonesNear(p, radius)
	if zones == nil {
		zones = []hazard.Zone{}
	}
	writeJSON(c, http.StatusOK, hazardsResp{TakenAt: snap.TakenAt(), Zones: zones})
}
