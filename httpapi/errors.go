package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"warehousematch/auth"
	"warehousematch/engagement"
)

// writeEngagementError maps the engine's error taxonomy onto HTTP statuses.
// Version conflicts and illegal transitions both land on 409 so clients
// refetch before retrying; guard and validation failures are 422.
func writeEngagementError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engagement.ErrNotFound):
		c.JSON(http.StatusNotFound, failure(err.Error(), "NOT_FOUND"))
	case errors.Is(err, engagement.ErrUnauthorizedActor):
		c.JSON(http.StatusForbidden, failure(err.Error(), "FORBIDDEN"))
	case errors.Is(err, engagement.ErrVersionConflict):
		c.JSON(http.StatusConflict, failure(err.Error(), "VERSION_CONFLICT"))
	case errors.Is(err, engagement.ErrIllegalTransition):
		c.JSON(http.StatusConflict, failure(err.Error(), "ILLEGAL_TRANSITION"))
	case errors.Is(err, engagement.ErrGuardViolation):
		c.JSON(http.StatusUnprocessableEntity, failure(err.Error(), "GUARD_VIOLATION"))
	case errors.Is(err, engagement.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, failure(err.Error(), "VALIDATION"))
	default:
		c.JSON(http.StatusInternalServerError, failure("internal error", "INTERNAL_ERROR"))
	}
}

func writeAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrDuplicateEmail):
		c.JSON(http.StatusConflict, failure(err.Error(), "CONFLICT"))
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, failure(err.Error(), "UNAUTHORIZED"))
	case errors.Is(err, auth.ErrUserNotFound):
		c.JSON(http.StatusNotFound, failure(err.Error(), "NOT_FOUND"))
	case errors.Is(err, auth.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, failure(err.Error(), "INVALID_REQUEST"))
	default:
		c.JSON(http.StatusBadRequest, failure(err.Error(), "INVALID_REQUEST"))
	}
}
