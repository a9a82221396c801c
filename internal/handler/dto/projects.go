package dto

import (
	"errors"
	"strings"
	"time"

	"github.com/projectdesk/projectdesk/internal/dashboard"
	"github.com/projectdesk/projectdesk/internal/model"
)

// DateLayout is the calendar-day format used by the dashboard date inputs.
const DateLayout = "2006-01-02"

// ErrInvalidDate is returned for a date that is neither YYYY-MM-DD nor RFC 3339.
var ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")

// ParseDate accepts a calendar day or a full RFC 3339 timestamp.
// Calendar days are interpreted in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(DateLayout, s, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, ErrInvalidDate
}

// CreateProjectRequest is the body of POST /api/projects.
type CreateProjectRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	Status          string `json:"status,omitempty"`
	AssignedTo      string `json:"assignedTo"`
	DueDate         string `json:"dueDate"`
	ManagerAssigned bool   `json:"managerAssigned"`
	ManagerName     string `json:"managerName"`
}

// UpdateProjectRequest is the body of PATCH /api/projects/{id}.
// Absent fields are left untouched.
type UpdateProjectRequest struct {
	Name            *string `json:"name,omitempty"`
	Description     *string `json:"description,omitempty"`
	Status          *string `json:"status,omitempty"`
	AssignedTo      *string `json:"assignedTo,omitempty"`
	DueDate         *string `json:"dueDate,omitempty"`
	ManagerAssigned *bool   `json:"managerAssigned,omitempty"`
	ManagerName     *string `json:"managerName,omitempty"`
}

// ToPatch converts the request into a model.ProjectPatch.
// An empty dueDate becomes a zero time so the service reports it as missing.
func (r UpdateProjectRequest) ToPatch(loc *time.Location) (model.ProjectPatch, error) {
	patch := model.ProjectPatch{
		Name:            r.Name,
		Description:     r.Description,
		AssignedTo:      r.AssignedTo,
		ManagerAssigned: r.ManagerAssigned,
		ManagerName:     r.ManagerName,
	}
	if r.Status != nil {
		status := model.ProjectStatus(*r.Status)
		patch.Status = &status
	}
	if r.DueDate != nil {
		var due time.Time
		if strings.TrimSpace(*r.DueDate) != "" {
			parsed, err := ParseDate(*r.DueDate, loc)
			if err != nil {
				return model.ProjectPatch{}, err
			}
			due = parsed
		}
		patch.DueDate = &due
	}
	return patch, nil
}

// StatusRequest is the body of PATCH /api/projects/{id}/status.
type StatusRequest struct {
	Status string `json:"status"`
}

// ProjectListResponse is a filtered, sorted dashboard view.
type ProjectListResponse struct {
	Data     []model.Project    `json:"data"`
	Controls dashboard.Controls `json:"controls"`
	Role     model.Role         `json:"role"`
}

// QueryRequest is the body of POST /api/projects/{id}/queries.
type QueryRequest struct {
	Message string `json:"message"`
}

// QueryListResponse lists recent project queries, newest first.
type QueryListResponse struct {
	Data []model.ProjectQuery `json:"data"`
}

// ManagerPasswordRequest is the body of PUT /api/settings/manager-password.
type ManagerPasswordRequest struct {
	Password string `json:"password"`
}

// RoleRequest is the body of POST /api/session/role.
type RoleRequest struct {
	Role     model.Role `json:"role"`
	Password string     `json:"password,omitempty"`
}

// RoleResponse carries the granted role and a token that embeds it.
type RoleResponse struct {
	Role          model.Role `json:"role"`
	SetupRequired bool       `json:"setupRequired"`
	Token         string     `json:"token"`
}

// Feed message types sent over websocket watches.
const (
	FeedSnapshot = "snapshot"
	FeedError    = "error"
)

// FeedMessage is one websocket frame of a live watch.
type FeedMessage[T any] struct {
	Type  string `json:"type"`
	Data  T      `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}
