// Package handlers defines the HTTP-layer error codes used across the host API.
//
// Codes are lowercase snake_case and stable; clients branch on them rather
// than on messages. Generic codes mirror HTTP status semantics, the remaining
// ones name order-lifecycle outcomes the status alone cannot convey.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "not_delivered",
//	  "message": "only delivered orders can be rated"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeUnavailable      = "service_unavailable"

	// Domain-specific:
	ErrCodeInvalidStatus = "invalid_status"
	ErrCodeNoNextStatus  = "no_next_status"
	ErrCodeNotDelivered  = "not_delivered"
	ErrCodeAlreadyRated  = "already_rated"
	ErrCodeRejected      = "remote_rejected"
	ErrCodeUpstream      = "remote_unavailable"
	ErrCodeTimeout       = "remote_timeout"
	ErrCodeRefreshFailed = "refresh_failed"
	ErrCodeCacheFailed   = "cache_failed"
)
