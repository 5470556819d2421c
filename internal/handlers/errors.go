package handlers

import (
	"errors"
	"net/http"

	"github.com/Jeet1511/FF-LIKE/internal/services"
	"github.com/gin-gonic/gin"
)

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrInvalidServer):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrAccountNotFound),
		errors.Is(err, services.ErrServerHasNoAccounts),
		errors.Is(err, services.ErrTargetNotFound),
		errors.Is(err, services.ErrUnknownSetting):
		return http.StatusNotFound
	case errors.Is(err, services.ErrDuplicateAccount):
		return http.StatusConflict
	case errors.Is(err, services.ErrLimitReached):
		return http.StatusTooManyRequests
	case errors.Is(err, services.ErrCredentialRejected), errors.Is(err, services.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, services.ErrInvalidLogin), errors.Is(err, services.ErrInvalidAuthToken):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrUserDisabled):
		return http.StatusForbidden
	case errors.Is(err, services.ErrWrongPassword):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondOK writes the admin envelope.
func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   msg,
		"kind":    services.ErrorKind(err),
	})
}

func respondBadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   msg,
		"kind":    "validation_error",
	})
}
