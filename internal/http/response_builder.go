package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"budgetbuddy/internal/core"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/offline"
	"budgetbuddy/internal/recordstore"
	"budgetbuddy/internal/services"
	"budgetbuddy/internal/session"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// statusFor maps domain errors to HTTP status codes and stable codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrNoUser):
		return http.StatusUnauthorized, "no_session"
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidPeriod),
		errors.Is(err, core.ErrEmptyUser),
		errors.Is(err, core.ErrEmptyID),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrDescriptionLimit),
		errors.Is(err, errInvalidBody):
		return http.StatusUnprocessableEntity, "invalid_input"
	case errors.Is(err, recordstore.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, services.ErrOffline):
		return http.StatusServiceUnavailable, "offline"
	case errors.Is(err, recordstore.ErrUnavailable):
		return http.StatusBadGateway, "record_store_unavailable"
	case errors.Is(err, offline.ErrCorruptQueue):
		return http.StatusConflict, "corrupt_queue"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// respondError writes err as JSON. Server-side failures are attached to the
// gin context so the request logger reports them.
func respondError(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		log.FromContext(c.Request.Context()).WarnContext(c.Request.Context(), "Request failed",
			log.FieldPath, c.FullPath(), log.FieldError, err)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

// respondWrite reports the outcome of a mutation: 202 when it was queued for
// replay, created (or 200) when it reached the record store.
func respondWrite(c *gin.Context, res services.Result, created bool) {
	switch {
	case res.Queued:
		c.JSON(http.StatusAccepted, res)
	case created:
		c.JSON(http.StatusCreated, res)
	default:
		c.JSON(http.StatusOK, res)
	}
}
