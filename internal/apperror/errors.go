// Package apperror provides domain-specific error types for Librarium.
// These errors carry an HTTP status code and a user-safe message. The Echo
// error handler maps them to appropriate HTTP responses automatically.
//
// NEVER return raw database, GitHub, or infrastructure errors to the
// client. Always wrap them in an apperror type or return a generic
// internal error.
package apperror

import (
	"fmt"
	"net/http"
)

// Machine-readable error codes returned in the "error" field of JSON
// responses. Clients switch on these, never on the message text.
const (
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeRateLimited        = "RATE_LIMITED"
	CodeSessionExpired     = "SESSION_EXPIRED"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeValidationError    = "VALIDATION_ERROR"
	CodeConfiguration      = "CONFIGURATION_ERROR"
	CodeFileNotFound       = "FILE_NOT_FOUND"
	CodeContentValidation  = "CONTENT_VALIDATION_ERROR"
	CodeGitHubFetch        = "GITHUB_FETCH_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
)

// AppError is the base error type for all domain errors. It carries an
// HTTP status code, a machine-readable error code, and a human-readable
// message safe to show to the client.
type AppError struct {
	// Status is the HTTP status code (e.g., 401, 429, 500).
	Status int `json:"-"`

	// Code is the machine-readable error classifier (e.g., "RATE_LIMITED").
	Code string `json:"error"`

	// Message is a human-readable description safe for the client.
	Message string `json:"message"`

	// Internal holds the underlying error for logging. Never exposed to client.
	Internal error `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *AppError) Unwrap() error {
	return e.Internal
}

// --- Constructors for common error types ---

// NewInvalidCredentials creates a 401 for failed password verification.
// The message is deliberately identical whether the password was wrong or
// the stored credentials were missing, so the response leaks nothing.
func NewInvalidCredentials() *AppError {
	return &AppError{
		Status:  http.StatusUnauthorized,
		Code:    CodeInvalidCredentials,
		Message: "Invalid password",
	}
}

// NewRateLimited creates a 429 for exhausted login attempts.
func NewRateLimited() *AppError {
	return &AppError{
		Status:  http.StatusTooManyRequests,
		Code:    CodeRateLimited,
		Message: "Too many attempts. Please try again later.",
	}
}

// NewSessionExpired creates a 401 for an expired session.
func NewSessionExpired() *AppError {
	return &AppError{
		Status:  http.StatusUnauthorized,
		Code:    CodeSessionExpired,
		Message: "Session expired. Please log in again.",
	}
}

// NewUnauthorized creates a 401 for a missing or invalid session.
func NewUnauthorized() *AppError {
	return &AppError{
		Status:  http.StatusUnauthorized,
		Code:    CodeUnauthorized,
		Message: "Unauthorized access",
	}
}

// NewValidation creates a 400 for malformed input. The message names the
// first violated rule so the client can surface it directly.
func NewValidation(message string) *AppError {
	return &AppError{
		Status:  http.StatusBadRequest,
		Code:    CodeValidationError,
		Message: message,
	}
}

// NewConfiguration creates a 500 for a missing or unreadable site config.
func NewConfiguration(err error) *AppError {
	return &AppError{
		Status:   http.StatusInternalServerError,
		Code:     CodeConfiguration,
		Message:  "Site not configured",
		Internal: err,
	}
}

// NewFileNotFound creates a 404 for a path that doesn't exist in the
// mirrored repository.
func NewFileNotFound(path string) *AppError {
	return &AppError{
		Status:  http.StatusNotFound,
		Code:    CodeFileNotFound,
		Message: fmt.Sprintf("File not found: %s", path),
	}
}

// NewContentValidation creates a 400 for markdown that failed the safety
// pipeline. Content is never partially served; the client gets either the
// full sanitized document or this error.
func NewContentValidation(message string) *AppError {
	return &AppError{
		Status:  http.StatusBadRequest,
		Code:    CodeContentValidation,
		Message: message,
	}
}

// NewGitHubFetch creates an error for an upstream GitHub failure. status
// overrides the default 500 when the upstream condition maps to something
// more specific (404 for a missing file, 429 when GitHub rate-limits us).
func NewGitHubFetch(status int, message string, err error) *AppError {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	code := CodeGitHubFetch
	switch status {
	case http.StatusNotFound:
		code = CodeFileNotFound
	case http.StatusTooManyRequests:
		code = CodeRateLimited
	}
	return &AppError{
		Status:   status,
		Code:     code,
		Message:  message,
		Internal: err,
	}
}

// NewInternal creates a 500 Internal Server Error. The real error is stored
// in Internal for logging but the client only sees a generic message.
func NewInternal(err error) *AppError {
	return &AppError{
		Status:   http.StatusInternalServerError,
		Code:     CodeInternal,
		Message:  "An unexpected error occurred. Please try again.",
		Internal: err,
	}
}

// SafeMessage returns the client-safe error message from an error. If the
// error is an AppError, returns its Message field (which is safe to expose).
// For any other error type, returns a generic message to prevent leaking
// internal details like table names, query structure, or stack traces.
func SafeMessage(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Message
	}
	return "an unexpected error occurred"
}

// SafeStatus returns the HTTP status code from an AppError, or 500 for
// any other error type.
func SafeStatus(err error) int {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
