// README: Dispatch handlers for order dispatch, cancellation, claims and assignment reads.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fooddispatch/internal/modules/dispatch"
	"fooddispatch/internal/types"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, orderID types.ID) (*dispatch.Assignment, error)
	Claim(ctx context.Context, assignmentID, driverID types.ID) (*dispatch.Assignment, error)
	Cancel(ctx context.Context, orderID types.ID) (int, error)
	Get(ctx context.Context, id types.ID) (*dispatch.Assignment, error)
	History(ctx context.Context, orderID types.ID) ([]dispatch.Assignment, error)
}

type DispatchHandler struct {
	dispatch Dispatcher
}

func NewDispatchHandler(svc Dispatcher) *DispatchHandler {
	return &DispatchHandler{dispatch: svc}
}

type dispatchResp struct {
	AssignmentID types.ID        `json:"assignment_id"`
	Status       dispatch.Status `json:"status"`
	Notified     []types.ID      `json:"notified"`
	ExpiresAt    time.Time       `json:"expires_at"`
}

func (h *DispatchHandler) Dispatch(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid order id")
		return
	}
	a, err := h.dispatch.Dispatch(c.Request.Context(), types.ID(id))
	if errors.Is(err, dispatch.ErrNoDriversAvailable) {
		writeJSON(c, http.StatusOK, gin.H{"order_id": id, "outcome": "no_drivers_available"})
		return
	}
	if err != nil {
		writeDispatchError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, dispatchResp{
		AssignmentID: a.ID,
		Status:       a.Status,
		Notified:     a.Notified,
		ExpiresAt:    a.ExpiresAt,
	})
}

func (h *DispatchHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid order id")
		return
	}
	n, err := h.dispatch.Cancel(c.Request.Context(), types.ID(id))
	if err != nil {
		writeDispatchError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": id, "cancelled": n})
}

func (h *DispatchHandler) History(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid order id")
		return
	}
	list, err := h.dispatch.History(c.Request.Context(), types.ID(id))
	if err != nil {
		writeDispatchError(c, err)
		return
	}
	if list == nil {
		list = []dispatch.Assignment{}
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": id, "assignments": list})
}

func (h *DispatchHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid assignment id")
		return
	}
	a, err := h.dispatch.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeDispatchError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, a)
}

type claimReq struct {
	DriverID string `json:"driver_id"`
}

// Claim is called by the driver client after it received an offer push.
func (h *DispatchHandler) Claim(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid assignment id")
		return
	}
	var req claimReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if !isValidID(req.DriverID) {
		writeError(c, http.StatusBadRequest, "invalid driver id")
		return
	}
	a, err := h.dispatch.Claim(c.Request.Context(), types.ID(id), types.ID(req.DriverID))
	if err != nil {
		writeDispatchError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"assignment_id": a.ID,
		"order_id":      a.OrderID,
		"status":        a.Status,
		"claimed_by":    a.ClaimedBy,
	})
}
