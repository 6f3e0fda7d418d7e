// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable; clients branch on them. Generic
// codes mirror HTTP status semantics. Validation failures from the upload
// service pass their own reason through (owner_required, uploads_not_list,
// invalid_category, invalid_payload, id_required, too_many_uploads).
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "invalid_category",
//	  "message": "invalid_category: uploads[2]: invalid category \"photo\" (want video, certificate or achievement)"
//	}
package handlers

const (
	ErrCodeBadRequest      = "bad_request"
	ErrCodeNotFound        = "not_found"
	ErrCodeRateLimited     = "too_many_requests"
	ErrCodeInternal        = "internal_error"
	ErrCodePayloadTooLarge = "payload_too_large"
	ErrCodeNotReady        = "not_ready"

	// Domain-specific:
	ErrCodeReconcileFailed  = "reconcile_failed"
	ErrCodeListFailed       = "list_failed"
	ErrCodeDeleteFailed     = "delete_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
