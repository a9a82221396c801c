package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/projectdesk/projectdesk/internal/auth"
	"github.com/projectdesk/projectdesk/internal/handler/dto"
	"github.com/projectdesk/projectdesk/internal/service"
)

// UserHandler handles signup, login, logout and profile endpoints.
type UserHandler struct {
	svc      *service.UserService
	resolver *auth.Resolver
	cookies  CookieConfig
	logger   *slog.Logger
}

// NewUserHandler creates a new UserHandler. resolver is used by Logout, which
// runs outside the auth middleware so an expired session can still sign out.
func NewUserHandler(svc *service.UserService, resolver *auth.Resolver, cookies CookieConfig, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		svc:      svc,
		resolver: resolver,
		cookies:  cookies,
		logger:   logger.With("component", "handler.users"),
	}
}

// Signup handles POST /api/users/signup.
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req dto.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.svc.Signup(r.Context(), service.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(h.logger, w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SignupResponse{
		Message:   "User created successfully",
		Success:   true,
		SavedUser: user,
	})
}

// Login handles POST /api/users/login.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusBadRequest, "Invalid email or password")
			return
		}
		handleServiceError(h.logger, w, err)
		return
	}

	h.cookies.setToken(w, result.Token, result.Identity.ExpiresAt)
	writeJSON(w, http.StatusOK, dto.LoginResponse{
		Message: "Login successful",
		Success: true,
		Token:   result.Token,
	})
}

// Logout handles GET /api/users/logout. The cookie is always cleared; a
// still-valid token is also revoked.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if identity, err := h.resolver.Resolve(r); err == nil {
		if err := h.svc.Logout(r.Context(), identity); err != nil {
			h.logger.Warn("failed to revoke token on logout", "user_id", identity.UserID, "error", err)
		} else {
			h.logger.Info("user_logged_out", "user_id", identity.UserID)
		}
	}

	h.cookies.clearToken(w)
	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "Logout successful", Success: true})
}

// Me handles GET /api/users/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	user, err := h.svc.GetUser(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusBadRequest, "User not found")
			return
		}
		handleServiceError(h.logger, w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.MeResponse{Message: "User found", Data: user})
}
