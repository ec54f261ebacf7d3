// README: Driver handlers for registration, location pings and availability.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"saferide/internal/modules/driver"
	"saferide/internal/types"
)

type DriverHandler struct {
	drivers *driver.Service
}

func NewDriverHandler(drivers *driver.Service) *DriverHandler {
	return &DriverHandler{drivers: drivers}
}

func (h *DriverHandler) Register(c *gin.Context) {
	var p driver.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	st, err := h.drivers.Register(c.Request.Context(), p)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, st)
}

func (h *DriverHandler) Get(c *gin.Context) {
	st, err := h.drivers.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}

func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	var req pointReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	p, err := req.point("location")
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	st, err := h.drivers.UpdateLocation(c.Request.Context(), types.ID(c.Param("id")), p)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}

type availabilityReq struct {
	Online    *bool `json:"online"`
	Available *bool `json:"available"`
}

func (h *DriverHandler) SetAvailability(c *gin.Context) {
	var req availabilityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Online == nil || req.Available == nil {
		writeError(c, http.StatusBadRequest, "online and available are required")
		return
	}
	st, err := h.drivers.SetAvailability(c.Request.Context(), types.ID(c.Param("id")), *req.Online, *req.Available)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}
