// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import "github.com/projectdesk/projectdesk/internal/model"

// ErrorResponse represents an API error. Missing lists absent required fields.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
}

// SignupRequest is the body of POST /api/users/signup.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupResponse is returned after a successful signup.
type SignupResponse struct {
	Message   string      `json:"message"`
	Success   bool        `json:"success"`
	SavedUser *model.User `json:"savedUser"`
}

// LoginRequest is the body of POST /api/users/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the identity token. The same token is set as a cookie.
type LoginResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
	Token   string `json:"token"`
}

// MessageResponse is a bare acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

// MeResponse wraps the caller's profile.
type MeResponse struct {
	Message string      `json:"message"`
	Data    *model.User `json:"data"`
}
