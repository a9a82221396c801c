package handler

import (
	"log/slog"
	"net/http"

	"github.com/projectdesk/projectdesk/internal/auth"
	"github.com/projectdesk/projectdesk/internal/handler/dto"
	"github.com/projectdesk/projectdesk/internal/metrics"
	"github.com/projectdesk/projectdesk/internal/model"
	"github.com/projectdesk/projectdesk/internal/service"
)

// SessionHandler handles the manager password setting and role switches.
type SessionHandler struct {
	projects *service.ProjectService
	users    *service.UserService
	cookies  CookieConfig
	stream   feedStream[model.ManagerPasswordStatus]
	logger   *slog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(projects *service.ProjectService, users *service.UserService, cookies CookieConfig, allowedOrigins []string, logger *slog.Logger, recorder metrics.Recorder) *SessionHandler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	logger = logger.With("component", "handler.session")
	return &SessionHandler{
		projects: projects,
		users:    users,
		cookies:  cookies,
		stream:   feedStream[model.ManagerPasswordStatus]{upgrader: newUpgrader(allowedOrigins), logger: logger, metrics: recorder},
		logger:   logger,
	}
}

// GetManagerPassword handles GET /api/settings/manager-password.
// Only whether a password exists is revealed.
func (h *SessionHandler) GetManagerPassword(w http.ResponseWriter, r *http.Request) {
	status, err := h.projects.ManagerPasswordStatus(r.Context())
	if err != nil {
		handleServiceError(h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// WatchManagerPassword handles GET /api/settings/manager-password/watch.
func (h *SessionHandler) WatchManagerPassword(w http.ResponseWriter, r *http.Request) {
	h.stream.serve(w, r, h.projects.WatchManagerPassword(), func(s model.ManagerPasswordStatus) any { return s })
}

// PutManagerPassword handles PUT /api/settings/manager-password.
func (h *SessionHandler) PutManagerPassword(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	var req dto.ManagerPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.projects.SetManagerPassword(r.Context(), req.Password); err != nil {
		handleServiceError(h.logger, w, err)
		return
	}

	h.logger.Info("manager_password_changed", "user_id", identity.UserID)
	w.WriteHeader(http.StatusNoContent)
}

// SwitchRole handles POST /api/session/role. On success a new token carrying
// the granted role replaces the current one.
func (h *SessionHandler) SwitchRole(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	var req dto.RoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	grant, err := h.projects.SwitchRole(r.Context(), identity.UserID, req.Role, req.Password)
	if err != nil {
		handleServiceError(h.logger, w, err)
		return
	}

	token, issued, err := h.users.IssueToken(identity.WithRole(grant.Role))
	if err != nil {
		handleServiceError(h.logger, w, err)
		return
	}

	// The old token stays valid until it expires but now carries a stale role.
	if err := h.users.Logout(r.Context(), identity); err != nil {
		h.logger.Warn("failed to revoke previous token", "user_id", identity.UserID, "error", err)
	}

	h.cookies.setToken(w, token, issued.ExpiresAt)
	writeJSON(w, http.StatusOK, dto.RoleResponse{
		Role:          grant.Role,
		SetupRequired: grant.SetupRequired,
		Token:         token,
	})
}
