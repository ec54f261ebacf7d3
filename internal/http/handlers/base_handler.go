// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"saferide/internal/modules/driver"
	"saferide/internal/modules/trip"
	"saferide/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

type pointReq struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// point rejects a missing coordinate instead of reading it as 0.
func (p pointReq) point(field string) (types.Point, error) {
	if p.Lat == nil || p.Lng == nil {
		return types.Point{}, errors.New(field + ": lat and lng are required")
	}
	pt := types.Point{Lat: *p.Lat, Lng: *p.Lng}
	if err := pt.Validate(); err != nil {
		return types.Point{}, err
	}
	return pt, nil
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, types.ErrInput):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, trip.ErrNotFound), errors.Is(err, driver.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, trip.ErrInvalidState), errors.Is(err, types.ErrConflict), errors.Is(err, driver.ErrReserved):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, types.ErrTransientIO):
		writeError(c, http.StatusServiceUnavailable, "temporarily unavailable")
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
