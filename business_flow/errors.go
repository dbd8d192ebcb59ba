// Package businessflow contains the core business logic for the analytics pipeline
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Tracking errors
	ErrVisitorNotFound    = errors.New("visitor not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrPostNotFound       = errors.New("post not found")
	ErrUnknownEventType   = errors.New("unknown engagement event type")
	ErrInvalidScrollDepth = errors.New("invalid scroll checkpoint depth")

	// Admin errors
	ErrAdminNotFound     = errors.New("admin not found")
	ErrAdminInactive     = errors.New("admin account is inactive")
	ErrIncorrectPassword = errors.New("incorrect password")

	// Query errors
	ErrInvalidPage     = errors.New("page must be greater than 0")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
	ErrInvalidRange    = errors.New("days must be between 1 and 365")

	ErrCacheNotAvailable = errors.New("cache not available")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsVisitorNotFound(err error) bool {
	return errors.Is(err, ErrVisitorNotFound)
}

func IsSessionNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

func IsPostNotFound(err error) bool {
	return errors.Is(err, ErrPostNotFound)
}

func IsUnknownEventType(err error) bool {
	return errors.Is(err, ErrUnknownEventType)
}

func IsAdminNotFound(err error) bool {
	return errors.Is(err, ErrAdminNotFound)
}

func IsAdminInactive(err error) bool {
	return errors.Is(err, ErrAdminInactive)
}

func IsIncorrectPassword(err error) bool {
	return errors.Is(err, ErrIncorrectPassword)
}

func IsInvalidRange(err error) bool {
	return errors.Is(err, ErrInvalidRange)
}
