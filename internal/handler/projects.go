package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/projectdesk/projectdesk/internal/auth"
	"github.com/projectdesk/projectdesk/internal/dashboard"
	"github.com/projectdesk/projectdesk/internal/handler/dto"
	"github.com/projectdesk/projectdesk/internal/metrics"
	"github.com/projectdesk/projectdesk/internal/model"
	"github.com/projectdesk/projectdesk/internal/service"
)

// ProjectHandlerConfig holds settings shared by project endpoints.
type ProjectHandlerConfig struct {
	// Location decides which calendar day is "today".
	Location *time.Location
	// AllowedOrigins may open websocket watches besides the API's own host.
	AllowedOrigins []string
}

// ProjectHandler handles project, query and live watch endpoints.
type ProjectHandler struct {
	svc      *service.ProjectService
	loc      *time.Location
	upgrader *websocket.Upgrader
	logger   *slog.Logger
	metrics  metrics.Recorder
	now      func() time.Time
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(svc *service.ProjectService, cfg ProjectHandlerConfig, logger *slog.Logger, recorder metrics.Recorder) *ProjectHandler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &ProjectHandler{
		svc:      svc,
		loc:      cfg.Location,
		upgrader: newUpgrader(cfg.AllowedOrigins),
		logger:   logger.With("component", "handler.projects"),
		metrics:  recorder,
		now:      time.Now,
	}
}

// List handles GET /api/projects.
//
// Query parameters: search, status, showPast (default true), date and today
// (YYYY-MM-DD). The response carries the controls of the caller's role.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	filter, today, err := h.parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	projects, err := h.svc.List(r.Context(), identity.UserID)
	if err != nil {
		handleServiceError(h.logger, w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ProjectListResponse{
		Data:     dashboard.Apply(projects, filter, today),
		Controls: dashboard.ControlsFor(identity.Role),
		Role:     identity.Role,
	})
}

// Watch handles GET /api/projects/watch. It upgrades to a websocket and
// pushes the filtered project list after every change. Filter parameters are
// the same as List; "today" is re-evaluated for each snapshot unless fixed.
func (h *ProjectHandler) Watch(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	filter, fixedToday, err := h.parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	todayFixed := r.URL.Query().Get("today") != ""

	stream := feedStream[[]model.Project]{upgrader: h.upgrader, logger: h.logger, metrics: h.metrics}
	stream.serve(w, r, h.svc.Watch(identity.UserID), func(projects []model.Project) any {
		today := fixedToday
		if !todayFixed {
			today = h.now().In(h.loc)
		}
		return dashboard.Apply(projects, filter, today)
	})
}

// Create handles POST /api/projects.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	var req dto.CreateProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	input := service.ProjectInput{
		Name:            req.Name,
		Description:     req.Description,
		Status:          model.ProjectStatus(req.Status),
		AssignedTo:      req.AssignedTo,
		ManagerAssigned: req.ManagerAssigned,
		ManagerName:     req.ManagerName,
	}
	if strings.TrimSpace(req.DueDate) != "" {
		due, err := dto.ParseDate(req.DueDate, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		input.DueDate = &due
	}

	project, err := h.svc.Create(r.Context(), identity.UserID, input)
	if err != nil {
		handleServiceError(h.logger, w, err)
		return
	}

	writeJSON(w, http.StatusCreated, project)
}

// Update handles PATCH /api/projects/{id}.
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req dto.UpdateProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	patch, err := req.ToPatch(h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	project, err := h.svc.Update(r.Context(), identity.UserID, id, patch)
	if err != nil {
		handleServiceError(h.logger, w, err)
		return
	}

	writeJSON(w, http.StatusOK, project)
}

// UpdateStatus handles PATCH /api/projects/{id}/status.
func (h *ProjectHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req dto.StatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	project, err := h.svc.UpdateStatus(r.Context(), identity.UserID, id, model.ProjectStatus(req.Status))
	if err != nil {
		handleServiceError(h.logger, w, err)
		return
	}

	writeJSON(w, http.StatusOK, project)
}

// Delete handles DELETE /api/projects/{id}.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	if err := h.svc.Delete(r.Context(), identity.UserID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(h.logger, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RaiseQuery handles POST /api/projects/{id}/queries. The body is optional.
func (h *ProjectHandler) RaiseQuery(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	var req dto.QueryRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	query, err := h.svc.RaiseQuery(r.Context(), *identity, chi.URLParam(r, "id"), req.Message)
	if err != nil {
		handleServiceError(h.logger, w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, query)
}

// ListQueries handles GET /api/queries.
func (h *ProjectHandler) ListQueries(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	queries, err := h.svc.ListQueries(r.Context(), limit)
	if err != nil {
		handleServiceError(h.logger, w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.QueryListResponse{Data: queries})
}

// parseLimit returns 0 for an absent limit, leaving the default to the service.
func parseLimit(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(s)
	if err != nil || limit < 1 {
		return 0, errInvalidLimit
	}
	return limit, nil
}

// parseFilter reads the dashboard filter from the query string.
func (h *ProjectHandler) parseFilter(r *http.Request) (dashboard.Filter, time.Time, error) {
	q := r.URL.Query()
	filter := dashboard.DefaultFilter()
	today := h.now().In(h.loc)

	filter.Search = strings.TrimSpace(q.Get("search"))

	if s := q.Get("status"); s != "" && s != "all" {
		status := model.ProjectStatus(s)
		if !status.IsValid() {
			return filter, today, service.ErrInvalidStatus
		}
		filter.Status = status
	}

	if sp := q.Get("showPast"); sp != "" {
		show, err := strconv.ParseBool(sp)
		if err != nil {
			return filter, today, errInvalidShowPast
		}
		filter.ShowPast = show
	}

	if d := q.Get("date"); d != "" {
		date, err := dto.ParseDate(d, h.loc)
		if err != nil {
			return filter, today, err
		}
		filter.Date = &date
	}

	if t := q.Get("today"); t != "" {
		parsed, err := dto.ParseDate(t, h.loc)
		if err != nil {
			return filter, today, err
		}
		today = parsed
	}

	return filter, today, nil
}
