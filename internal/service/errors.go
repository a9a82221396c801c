// Package service provides business logic for the application.
package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/projectdesk/projectdesk/internal/dashboard"
)

// Service errors.
var (
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrProjectNotFound    = errors.New("project not found")
	ErrInvalidStatus      = errors.New("invalid project status")
	ErrInvalidRole        = errors.New("invalid role")
	ErrIncorrectPassword  = dashboard.ErrIncorrectPassword
	ErrTooManyAttempts    = errors.New("too many role switch attempts")
)

// ValidationError reports missing or empty required fields.
type ValidationError struct {
	Missing []string
	Message string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return "missing required fields: " + strings.Join(e.Missing, ", ")
	}
	return e.Message
}

// AttemptsExceededError is returned when the role switch limiter rejects an attempt.
type AttemptsExceededError struct {
	RetryAfter time.Duration
}

func (e *AttemptsExceededError) Error() string {
	return fmt.Sprintf("%s, retry after %s", ErrTooManyAttempts, e.RetryAfter)
}

func (e *AttemptsExceededError) Unwrap() error {
	return ErrTooManyAttempts
}

// requireFields collects the names of empty fields, in the given order.
func requireFields(fields ...[2]string) []string {
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f[1]) == "" {
			missing = append(missing, f[0])
		}
	}
	return missing
}
