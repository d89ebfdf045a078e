package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/TimurManjosov/silencegate/internal/bitmask"
	"github.com/TimurManjosov/silencegate/internal/capability"
	"github.com/TimurManjosov/silencegate/internal/eventloop"
	"github.com/TimurManjosov/silencegate/internal/syncctl"
	"github.com/TimurManjosov/silencegate/internal/threshold"
)

// ErrorCode represents machine-readable error codes
type ErrorCode string

const (
	// General error codes
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeBadRequest      ErrorCode = "BAD_REQUEST"
	ErrCodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden       ErrorCode = "FORBIDDEN"
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeRateLimited     ErrorCode = "RATE_LIMITED"
	ErrCodeRequestTooLarge ErrorCode = "REQUEST_TOO_LARGE"
	ErrCodeUnavailable     ErrorCode = "UNAVAILABLE"

	// Validation error codes
	ErrCodeValidation       ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidJSON      ErrorCode = "INVALID_JSON"
	ErrCodeMissingField     ErrorCode = "MISSING_FIELD"
	ErrCodeInvalidSelection ErrorCode = "INVALID_SELECTION"
	ErrCodeInvalidThreshold ErrorCode = "INVALID_THRESHOLD"

	// State error codes
	ErrCodeUnknownFeature  ErrorCode = "UNKNOWN_FEATURE"
	ErrCodeUnknownDomain   ErrorCode = "UNKNOWN_DOMAIN"
	ErrCodeUnknownRequest  ErrorCode = "UNKNOWN_REQUEST"
	ErrCodeRequestInFlight ErrorCode = "REQUEST_IN_FLIGHT"
	ErrCodeInactive        ErrorCode = "INACTIVE"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error     string            `json:"error"`                // HTTP status text
	Message   string            `json:"message"`              // Human-readable description
	Code      ErrorCode         `json:"code"`                 // Machine-readable error code
	Fields    map[string]string `json:"fields,omitempty"`     // Field-level errors
	RequestID string            `json:"request_id,omitempty"` // Request ID for debugging
}

// NewErrorResponse creates a new error response
func NewErrorResponse(statusCode int, code ErrorCode, message string) *ErrorResponse {
	return &ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    code,
	}
}

// WithFields adds field-level errors to the response
func (e *ErrorResponse) WithFields(fields map[string]string) *ErrorResponse {
	e.Fields = fields
	return e
}

// WithRequestID adds a request ID to the response
func (e *ErrorResponse) WithRequestID(requestID string) *ErrorResponse {
	e.RequestID = requestID
	return e
}

// writeErrorResponse writes a structured error response to the http response writer
func writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, errResp *ErrorResponse) {
	// Add request ID from chi middleware if available
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		errResp.RequestID = reqID
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errResp)
}

// ValidationError creates a validation error response with field-level details
func ValidationError(w http.ResponseWriter, r *http.Request, message string, fields map[string]string) {
	errResp := NewErrorResponse(http.StatusBadRequest, ErrCodeValidation, message).
		WithFields(fields)
	writeErrorResponse(w, r, http.StatusBadRequest, errResp)
}

// BadRequestError creates a bad request error response
func BadRequestError(w http.ResponseWriter, r *http.Request, code ErrorCode, message string) {
	errResp := NewErrorResponse(http.StatusBadRequest, code, message)
	writeErrorResponse(w, r, http.StatusBadRequest, errResp)
}

// UnauthorizedError creates an unauthorized error response
func UnauthorizedError(w http.ResponseWriter, r *http.Request, message string) {
	errResp := NewErrorResponse(http.StatusUnauthorized, ErrCodeUnauthorized, message)
	writeErrorResponse(w, r, http.StatusUnauthorized, errResp)
}

// ForbiddenError creates a forbidden error response
func ForbiddenError(w http.ResponseWriter, r *http.Request, message string) {
	errResp := NewErrorResponse(http.StatusForbidden, ErrCodeForbidden, message)
	writeErrorResponse(w, r, http.StatusForbidden, errResp)
}

// InternalError creates an internal server error response
func InternalError(w http.ResponseWriter, r *http.Request, message string) {
	errResp := NewErrorResponse(http.StatusInternalServerError, ErrCodeInternal, message)
	writeErrorResponse(w, r, http.StatusInternalServerError, errResp)
}

// NotFoundError creates a not found error response
func NotFoundError(w http.ResponseWriter, r *http.Request, code ErrorCode, message string) {
	errResp := NewErrorResponse(http.StatusNotFound, code, message)
	writeErrorResponse(w, r, http.StatusNotFound, errResp)
}

// ConflictError creates a conflict error response
func ConflictError(w http.ResponseWriter, r *http.Request, code ErrorCode, message string) {
	errResp := NewErrorResponse(http.StatusConflict, code, message)
	writeErrorResponse(w, r, http.StatusConflict, errResp)
}

// RequestTooLargeError creates a request entity too large error response
func RequestTooLargeError(w http.ResponseWriter, r *http.Request, message string) {
	errResp := NewErrorResponse(http.StatusRequestEntityTooLarge, ErrCodeRequestTooLarge, message)
	writeErrorResponse(w, r, http.StatusRequestEntityTooLarge, errResp)
}

// writeDomainError maps errors returned by the controller and its
// collaborators to a status code.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, syncctl.ErrUnknownFeature):
		NotFoundError(w, r, ErrCodeUnknownFeature, err.Error())
	case errors.Is(err, syncctl.ErrUnknownDomain):
		NotFoundError(w, r, ErrCodeUnknownDomain, err.Error())
	case errors.Is(err, capability.ErrUnknownRequest):
		NotFoundError(w, r, ErrCodeUnknownRequest, err.Error())
	case errors.Is(err, syncctl.ErrRequestInFlight):
		ConflictError(w, r, ErrCodeRequestInFlight, err.Error())
	case errors.Is(err, syncctl.ErrInactive):
		ConflictError(w, r, ErrCodeInactive, err.Error())
	case errors.Is(err, bitmask.ErrStrayBits), errors.Is(err, bitmask.ErrUnknownFlag):
		BadRequestError(w, r, ErrCodeInvalidSelection, err.Error())
	case errors.Is(err, threshold.ErrInvalidDraft):
		BadRequestError(w, r, ErrCodeInvalidThreshold, err.Error())
	case errors.Is(err, eventloop.ErrStopped):
		errResp := NewErrorResponse(http.StatusServiceUnavailable, ErrCodeUnavailable, "server is shutting down")
		writeErrorResponse(w, r, http.StatusServiceUnavailable, errResp)
	default:
		InternalError(w, r, err.Error())
	}
}
