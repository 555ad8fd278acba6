// Package handlers defines the HTTP-layer error codes used across endpoints.
//
// Codes are lowercase snake_case and stable: clients branch on them for
// programmatic error handling, so renaming one is a breaking change. Generic
// codes mirror common HTTP status semantics; domain-specific codes cover
// business failures that a status alone cannot convey.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeSeedFailed  = "seed_failed"
	ErrCodeSendFailed  = "send_failed"
	ErrCodeFireFailed  = "fire_failed"
	ErrCodeStatsFailed = "stats_failed"
	ErrCodeListFailed  = "list_failed"
)
