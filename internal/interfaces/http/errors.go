package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainwf "github.com/garyjia/expense-approval/internal/domain/workflow"
)

// retryAfterSeconds is advertised on transient failures
const retryAfterSeconds = "2"

// StatusFor maps workflow errors onto HTTP status codes
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domainwf.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domainwf.ErrUnauthorizedDecision):
		return http.StatusForbidden
	case errors.Is(err, domainwf.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainwf.ErrAlreadyFinalized), errors.Is(err, domainwf.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, domainwf.ErrConfiguration):
		return http.StatusUnprocessableEntity
	case domainwf.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) fail(c *gin.Context, msg string, err error) {
	status := StatusFor(err)
	message := err.Error()

	switch {
	case status == http.StatusServiceUnavailable:
		c.Header("Retry-After", retryAfterSeconds)
	case status >= http.StatusInternalServerError:
		h.logger.Error(msg, "path", c.Request.URL.Path, "error", err)
		message = "internal error"
	}

	c.JSON(status, Response{
		Success: false,
		Error:   message,
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   msg,
	})
}
