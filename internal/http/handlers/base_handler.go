// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fooddispatch/internal/modules/dispatch"
	"fooddispatch/internal/modules/location"
)

type errorResponse struct {
	Error string `json:"error"`
}

// isValidID accepts the ids issued upstream and by dispatch (uuid form).
func isValidID(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeDispatchError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, dispatch.ErrNotFound):
		writeError(c, http.StatusNotFound, dispatch.ErrNotFound.Error())
	case errors.Is(err, dispatch.ErrAlreadyClaimed):
		writeError(c, http.StatusConflict, dispatch.ErrAlreadyClaimed.Error())
	case errors.Is(err, dispatch.ErrExpired):
		writeError(c, http.StatusGone, dispatch.ErrExpired.Error())
	case errors.Is(err, dispatch.ErrCancelled):
		writeError(c, http.StatusGone, dispatch.ErrCancelled.Error())
	case errors.Is(err, dispatch.ErrNotCandidate):
		writeError(c, http.StatusForbidden, dispatch.ErrNotCandidate.Error())
	case errors.Is(err, dispatch.ErrInvalidState), errors.Is(err, dispatch.ErrStoreWriteConflict):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, dispatch.ErrGeocodingFailed), errors.Is(err, dispatch.ErrNotificationDeliveryFailed):
		writeError(c, http.StatusBadGateway, err.Error())
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeLocationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, location.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, location.ErrUnknownDriver):
		writeError(c, http.StatusNotFound, err.Error())
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
