package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"direct-chat/services"
)

// RespondSuccess writes data as the JSON body with the given status.
func RespondSuccess(c *gin.Context, status int, data any) {
	c.JSON(status, data)
}

// RespondError maps err onto a status code and writes {"error": msg}.
// Internal failures are logged by the caller and reported generically.
func RespondError(c *gin.Context, err error) {
	status, msg := StatusFor(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// StatusFor returns the HTTP status and client-facing message for err.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrMediaUpload):
		return http.StatusBadGateway, "Failed to upload image"
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
