// README: Driver feed handlers; profile, location and availability writes into the pool.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fooddispatch/internal/modules/location"
	"fooddispatch/internal/types"
)

type LocationHandler struct {
	location *location.Service
}

func NewLocationHandler(svc *location.Service) *LocationHandler {
	return &LocationHandler{location: svc}
}

type profileReq struct {
	Name                string  `json:"name"`
	Phone               string  `json:"phone"`
	NotifyToken         string  `json:"notify_token"`
	Rating              float64 `json:"rating"`
	CompletedDeliveries int     `json:"completed_deliveries"`
}

func (h *LocationHandler) Register(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid driver id")
		return
	}
	var req profileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.location.RegisterDriver(c.Request.Context(), location.Profile{
		ID:                  types.ID(id),
		Name:                req.Name,
		Phone:               req.Phone,
		NotifyToken:         req.NotifyToken,
		Rating:              req.Rating,
		CompletedDeliveries: req.CompletedDeliveries,
	})
	if err != nil {
		writeLocationError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

type locationReq struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func (h *LocationHandler) Update(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid driver id")
		return
	}
	var req locationReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Lat == nil || req.Lng == nil {
		writeError(c, http.StatusBadRequest, "lat and lng are required")
		return
	}
	err := h.location.UpdateLocation(c.Request.Context(), location.LocationUpdate{
		DriverID:   types.ID(id),
		Position:   types.Point{Lat: *req.Lat, Lng: *req.Lng},
		RecordedAt: time.Now().UTC(),
	})
	if err != nil {
		writeLocationError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

type availabilityReq struct {
	Available *bool `json:"available"`
}

func (h *LocationHandler) SetAvailability(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid driver id")
		return
	}
	var req availabilityReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Available == nil {
		writeError(c, http.StatusBadRequest, "available is required")
		return
	}
	if err := h.location.SetAvailability(c.Request.Context(), types.ID(id), *req.Available); err != nil {
		writeLocationError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "ok", "available": *req.Available})
}
