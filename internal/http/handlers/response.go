// Package handlers provides the HTTP handlers of the host API that embeds the
// order engine.
//
// This file holds the response helpers shared by every endpoint: the error
// envelope, the mapping from engine errors to HTTP statuses, and thin success
// writers. Every failure leaves through fail() so the body shape is uniform:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "order not found"
//	}
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-laundry-sync/internal/http/middleware"
	"github.com/tbourn/go-laundry-sync/internal/remote"
	"github.com/tbourn/go-laundry-sync/internal/services"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"order not found"`
}

// fail aborts the request with a structured error. Server-side failures
// (>= 500) are logged with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	}
	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail() for the router fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failErr maps an engine error onto the envelope. fallback is the code used
// for unclassified failures.
func failErr(c *gin.Context, err error, fallback string) {
	status, code := classify(err, fallback)
	fail(c, status, code, err.Error())
}

// classify returns the HTTP status and error code for err.
func classify(err error, fallback string) (int, string) {
	switch {
	case errors.Is(err, services.ErrInvalidStatus):
		return http.StatusBadRequest, ErrCodeInvalidStatus
	case errors.Is(err, services.ErrEmptyOwner),
		errors.Is(err, services.ErrEmptyOrderID),
		errors.Is(err, services.ErrEmptyOrderNumber),
		errors.Is(err, services.ErrNoItems),
		errors.Is(err, services.ErrInvalidItem),
		errors.Is(err, services.ErrInvalidRating):
		return http.StatusBadRequest, ErrCodeBadRequest
	case errors.Is(err, services.ErrNoNextStatus):
		return http.StatusConflict, ErrCodeNoNextStatus
	case errors.Is(err, services.ErrNotDelivered):
		return http.StatusConflict, ErrCodeNotDelivered
	case errors.Is(err, services.ErrAlreadyRated):
		return http.StatusConflict, ErrCodeAlreadyRated
	case errors.Is(err, services.ErrStaleRefresh):
		return http.StatusConflict, ErrCodeConflict
	case errors.Is(err, services.ErrClosed):
		return http.StatusServiceUnavailable, ErrCodeUnavailable
	case errors.Is(err, remote.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, remote.ErrRejected):
		return http.StatusUnprocessableEntity, ErrCodeRejected
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrCodeTimeout
	case remote.IsTransient(err):
		return http.StatusBadGateway, ErrCodeUpstream
	default:
		return http.StatusInternalServerError, fallback
	}
}

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
