// Package errors provides the typed error model shared across the hub.
// Every failure a component surfaces carries an ErrorType tag so callers
// branch on kind rather than on message text.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeValidation represents envelope or input validation errors
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeRegistryUnavailable represents rules registry network or non-2xx failures
	ErrTypeRegistryUnavailable ErrorType = "registry_unavailable"
	// ErrTypeNoRulesConfigured represents an organization with no applicable rules
	ErrTypeNoRulesConfigured ErrorType = "no_rules_configured"
	// ErrTypeNoRouteFound represents a payload that matched zero rules
	ErrTypeNoRouteFound ErrorType = "no_route_found"
	// ErrTypeDispatch represents a failed delivery to a destination adapter
	ErrTypeDispatch ErrorType = "dispatch"
	// ErrTypePersistence represents a best-effort status update failure
	ErrTypePersistence ErrorType = "persistence"
	// ErrTypeConnection represents connection-related errors
	ErrTypeConnection ErrorType = "connection"
	// ErrTypeConfig represents configuration errors
	ErrTypeConfig ErrorType = "config"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// ValidationError creates a new validation error
func ValidationError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeValidation,
		Message: msg,
	}
}

// RegistryUnavailableError creates a new rules registry unavailable error
func RegistryUnavailableError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeRegistryUnavailable,
		Message: msg,
		Cause:   cause,
	}
}

// NoRulesConfiguredError creates a new no-rules-configured error
func NoRulesConfiguredError(organizationID string) *AppError {
	return &AppError{
		Type:    ErrTypeNoRulesConfigured,
		Message: fmt.Sprintf("no routing rules configured for organization %s", organizationID),
	}
}

// NoRouteFoundError creates a new no-route-found error
func NoRouteFoundError(organizationID string) *AppError {
	return &AppError{
		Type:    ErrTypeNoRouteFound,
		Message: fmt.Sprintf("no routing rule matched the payload for organization %s", organizationID),
	}
}

// DispatchError creates a new destination dispatch error
func DispatchError(destination string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeDispatch,
		Message: fmt.Sprintf("failed to dispatch payload to destination %s", destination),
		Cause:   cause,
	}
}

// PersistenceError creates a new persistence error
func PersistenceError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypePersistence,
		Message: msg,
		Cause:   cause,
	}
}

// ConnectionError creates a new connection error
func ConnectionError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeConnection,
		Message: msg,
		Cause:   cause,
	}
}

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeConfig,
		Message: msg,
	}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeInternal,
		Message: msg,
		Cause:   cause,
	}
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}

// GetType returns the error type of an error, or ErrTypeInternal for untyped errors
func GetType(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrTypeInternal
}
