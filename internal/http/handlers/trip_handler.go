// README: Trip handlers for create, get, dispatch and cancel.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"saferide/internal/modules/dispatch"
	"saferide/internal/modules/trip"
	"saferide/internal/types"
)

type TripHandler struct {
	trips    *trip.Service
	dispatch *dispatch.Coordinator
}

func NewTripHandler(trips *trip.Service, coord *dispatch.Coordinator) *TripHandler {
	return &TripHandler{trips: trips, dispatch: coord}
}

type createTripReq struct {
	RiderID     string   `json:"rider_id"`
	Pickup      pointReq `json:"pickup"`
	Destination pointReq `json:"destination"`
	Urgency     string   `json:"urgency"`
	// Dispatch runs matching right after the trip is stored.
	Dispatch bool `json:"dispatch"`
}

type createTripResp struct {
	Trip     *trip.Trip        `json:"trip"`
	Dispatch *dispatch.Outcome `json:"dispatch,omitempty"`
}

func (h *TripHandler) Create(c *gin.Context) {
	var req createTripReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.RiderID == "" {
		writeError(c, http.StatusBadRequest, "missing rider_id")
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

	t, err := h.trips.Create(c.Request.Context(), trip.CreateCommand{
		RiderID:     types.ID(req.RiderID),
		Pickup:      pickup,
		Destination: dest,
		Urgency:     urgency,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if !req.Dispatch {
		writeJSON(c, http.StatusCreated, createTripResp{Trip: t})
		return
	}

	out, err := h.dispatch.Dispatch(c.Request.Context(), t.ID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if t, err = h.trips.Get(c.Request.Context(), t.ID); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, createTripResp{Trip: t, Dispatch: &out})
}

func (h *TripHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing trip id")
		return
	}
	t, err := h.trips.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, t)
}

// Dispatch retries matching for a trip that is still pending.
func (h *TripHandler) Dispatch(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing trip id")
		return
	}
	out, err := h.dispatch.Dispatch(c.Request.Context(), types.ID(id))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, out)
}

type cancelTripReq struct {
	ActorType string `json:"actor_type"`
	Reason    string `json:"reason"`
}

func (h *TripHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing trip id")
		return
	}
	var req cancelTripReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid json")
			return
		}
	}
	if req.ActorType == "" {
		req.ActorType = "rider"
	}
	if req.Reason == "" {
		req.Reason = "user_cancel"
	}
	t, err := h.dispatch.Cancel(c.Request.Context(), types.ID(id), req.ActorType, req.Reason)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, t)
}
