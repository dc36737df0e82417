package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/learnloop/campaign-engine/internal/apperrors"
	"golang.org/x/exp/slog"
)

// statusFor maps a service error to its HTTP status
func statusFor(err error) int {
	switch {
	case apperrors.IsNotFound(err), errors.Is(err, apperrors.ErrUnknownJob):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrNotPublished), errors.Is(err, apperrors.ErrNotInAudience):
		return http.StatusForbidden
	case errors.Is(err, apperrors.ErrAlreadyAnswered), errors.Is(err, apperrors.ErrNotRequeueable):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrNoItems):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperrors.ErrUnknownItem),
		errors.Is(err, apperrors.ErrUnknownQuestion),
		errors.Is(err, apperrors.ErrInvalidOption):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error": ...}. Internal errors are logged and hidden.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
