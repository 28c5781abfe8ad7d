package dto

import "net/http"

// Domain error codes. These are the stable codes carried by
// shared.DomainError; API consumers branch on them, never on message
// text.
const (
	// ErrCodeInvalidInput is used when input fails domain validation
	ErrCodeInvalidInput = "INVALID_INPUT"
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ALREADY_EXISTS"
	// ErrCodeInvalidState is used when an operation is invalid for the current state
	ErrCodeInvalidState = "INVALID_STATE"
	// ErrCodeInsufficientStock is used when on-hand stock cannot cover a consume
	ErrCodeInsufficientStock = "INSUFFICIENT_STOCK"
	// ErrCodeConcurrencyConflict is used when optimistic locking fails after retries
	ErrCodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	// ErrCodeDependentRecords is used when a delete would orphan child records
	ErrCodeDependentRecords = "DEPENDENT_RECORDS_EXIST"
	// ErrCodePersistenceFailure is used when a durable write failed and rolled back
	ErrCodePersistenceFailure = "PERSISTENCE_FAILURE"
)

// Transport error codes raised by the HTTP layer itself, never by the
// engine.
const (
	// ErrCodeBadRequest is used for malformed requests (binding, bad UUIDs)
	ErrCodeBadRequest = "BAD_REQUEST"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "INVALID_JSON"
	// ErrCodeUnauthorized is used when the actor context is missing or invalid
	ErrCodeUnauthorized = "UNAUTHORIZED"
	// ErrCodeRequestTooLarge is used when the request body exceeds the limit
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	// ErrCodeRateLimited is used when the rate limit is exceeded
	ErrCodeRateLimited = "RATE_LIMITED"
	// ErrCodeInternal is used for unclassified server errors
	ErrCodeInternal = "INTERNAL"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes.
// Stock and state violations are conflicts with the ledger's current
// position, not validation problems, so they map to 409.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInvalidInput:        http.StatusBadRequest,
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeInvalidState:        http.StatusConflict,
	ErrCodeInsufficientStock:   http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeDependentRecords:    http.StatusConflict,
	ErrCodePersistenceFailure:  http.StatusInternalServerError,

	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeUnauthorized:    http.StatusUnauthorized,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeInternal:        http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Returns 500 Internal Server Error if the error code is not found.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
