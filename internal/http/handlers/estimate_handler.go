// README: Route estimate handler over the current hazard snapshot.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"saferide/internal/modules/hazard"
	"saferide/internal/modules/routing"
	"saferide/internal/types"
)

// Snapshots hands out the current hazard snapshot.
type Snapshots interface {
	Current() *hazard.Snapshot
}

type EstimateHandler struct {
	estimator *routing.Estimator
	hazards   Snapshots
}

func NewEstimateHandler(estimator *routing.Estimator, hazards Snapshots) *EstimateHandler {
	return &EstimateHandler{estimator: estimator, hazards: hazards}
}

type estimateReq struct {
	Pickup      pointReq `json:"pickup"`
	Destination pointReq `json:"destination"`
	Urgency     string   `json:"urgency"`
}

func (h *EstimateHandler) Create(c *gin.Context) {
	var req estimateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	pickup, err := req.Pickup.point("pickup")
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	dest, err := req.Destination.point("destination")
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	urgency, err := types.ParseUrgency(req.Urgency)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	est := h.estimator.Estimate(types.TripRequest{Pickup: pickup, Destination: dest, Urgency: urgency}, h.hazards.Current())
	writeJSON(c, http.StatusOK, est)
}
