package shared

import "errors"

// DomainError represents a domain-level error with a stable code that
// the HTTP layer maps onto a status. Engine callers branch on Code,
// never on message text.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// IsCode reports whether err is (or wraps) a DomainError carrying the
// given code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}

// CodeOf returns the code of the DomainError err is or wraps, or
// "INTERNAL" for errors outside the taxonomy.
func CodeOf(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return "INTERNAL"
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrInsufficientStock   = NewDomainError("INSUFFICIENT_STOCK", "Insufficient stock available")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrPersistenceFailure  = NewDomainError("PERSISTENCE_FAILURE", "Durable write failed, operation rolled back")
	ErrDependentRecords    = NewDomainError("DEPENDENT_RECORDS_EXIST", "Dependent child records exist; delete them first or request a cascade")
)
