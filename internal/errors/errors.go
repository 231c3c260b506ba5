package errors

import (
	"errors"
	"net/http"
)

// Kind classifies an AppError and decides its HTTP status.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindAuthentication  Kind = "authentication"
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
)

var (
	// ErrInvalidCredentials is returned by login for both unknown email and wrong password.
	ErrInvalidCredentials = NewAuthenticationError("email", "Invalid credentials.")
	// ErrUnauthenticated is returned when the bearer token is missing, invalid or revoked.
	ErrUnauthenticated = &AppError{Kind: KindUnauthenticated, Message: "Unauthenticated."}
	// ErrAdminOnly is returned when a non-admin calls an admin operation.
	ErrAdminOnly = NewForbiddenError("Unauthorized. Admin only.")
	// ErrSelfClaim is returned when a user claims their own food.
	ErrSelfClaim = NewForbiddenError("You cannot claim your own food.")
	// ErrFoodUnavailable is returned when a claim hits a food that is not available.
	ErrFoodUnavailable = NewConflictError("Food is no longer available.")
	// ErrFoodNotFound is returned for an unknown food id.
	ErrFoodNotFound = NewNotFoundError("Food not found.")
)

// AppError is an error surfaced to the API caller as {message, errors}.
type AppError struct {
	Kind    Kind
	Message string
	// Fields holds per-field messages for validation style errors.
	Fields map[string][]string
}

func (e *AppError) Error() string {
	return e.Message
}

// Is matches on kind and message so sentinel values compare equal after copies.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// StatusCode maps the error kind to an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Kind {
	case KindValidation, KindAuthentication:
		return http.StatusUnprocessableEntity
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse represents the JSON body of every failed request.
type ErrorResponse struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// ToErrorResponse converts an AppError to ErrorResponse.
func (e *AppError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{Message: e.Message, Errors: e.Fields}
}

// NewValidationError creates a validation error for a single field.
func NewValidationError(field, message string) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Message: message,
		Fields:  map[string][]string{field: {message}},
	}
}

// NewValidationErrors creates a validation error from several fields. The first
// message in field order becomes the top-level message.
func NewValidationErrors(order []string, fields map[string][]string) *AppError {
	msg := "The given data was invalid."
	for _, f := range order {
		if msgs := fields[f]; len(msgs) > 0 {
			msg = msgs[0]
			break
		}
	}
	return &AppError{Kind: KindValidation, Message: msg, Fields: fields}
}

// NewAuthenticationError creates a bad-credentials error attached to a field.
func NewAuthenticationError(field, message string) *AppError {
	return &AppError{
		Kind:    KindAuthentication,
		Message: message,
		Fields:  map[string][]string{field: {message}},
	}
}

// NewForbiddenError creates a 403 error.
func NewForbiddenError(message string) *AppError {
	return &AppError{Kind: KindForbidden, Message: message}
}

// NewNotFoundError creates a 404 error.
func NewNotFoundError(message string) *AppError {
	return &AppError{Kind: KindNotFound, Message: message}
}

// NewConflictError creates a 409 error.
func NewConflictError(message string) *AppError {
	return &AppError{Kind: KindConflict, Message: message}
}

// MapErrorToHTTP returns the status code and body for any error. Errors that are
// not AppErrors are reported as a generic 500.
func MapErrorToHTTP(err error) (int, ErrorResponse) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode(), appErr.ToErrorResponse()
	}
	return http.StatusInternalServerError, ErrorResponse{Message: "Server Error"}
}
