package model

import (
	"fmt"
	"time"
)

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	StatusPending    ProjectStatus = "Pending"
	StatusInProgress ProjectStatus = "In Progress"
	StatusCompleted  ProjectStatus = "Completed"
)

// ValidStatuses lists statuses in dashboard order.
var ValidStatuses = []ProjectStatus{StatusPending, StatusInProgress, StatusCompleted}

// IsValid checks if the status is one of the known values.
func (s ProjectStatus) IsValid() bool {
	return s.Rank() > 0
}

// Rank returns the sort rank of the status (Pending=1, In Progress=2, Completed=3).
// Unknown statuses rank 0.
func (s ProjectStatus) Rank() int {
	switch s {
	case StatusPending:
		return 1
	case StatusInProgress:
		return 2
	case StatusCompleted:
		return 3
	default:
		return 0
	}
}

// Project is a tracked piece of work owned by a single user.
type Project struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Description     string        `json:"description"`
	Status          ProjectStatus `json:"status"`
	AssignedTo      string        `json:"assignedTo"`
	DueDate         time.Time     `json:"dueDate"`
	CreationDate    time.Time     `json:"creationDate"`
	ManagerAssigned bool          `json:"managerAssigned"`
	ManagerName     string        `json:"managerName"`
	OwnerUserID     string        `json:"userId"`
}

// ProjectPatch is a partial update. Nil fields are left untouched.
type ProjectPatch struct {
	Name            *string
	Description     *string
	Status          *ProjectStatus
	AssignedTo      *string
	DueDate         *time.Time
	ManagerAssigned *bool
	ManagerName     *string
}

// IsEmpty reports whether the patch changes nothing.
func (p ProjectPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Status == nil &&
		p.AssignedTo == nil && p.DueDate == nil && p.ManagerAssigned == nil &&
		p.ManagerName == nil
}

// Apply merges the patch into the project in place.
func (p ProjectPatch) Apply(project *Project) {
	if p.Name != nil {
		project.Name = *p.Name
	}
	if p.Description != nil {
		project.Description = *p.Description
	}
	if p.Status != nil {
		project.Status = *p.Status
	}
	if p.AssignedTo != nil {
		project.AssignedTo = *p.AssignedTo
	}
	if p.DueDate != nil {
		project.DueDate = *p.DueDate
	}
	if p.ManagerAssigned != nil {
		project.ManagerAssigned = *p.ManagerAssigned
	}
	if p.ManagerName != nil {
		project.ManagerName = *p.ManagerName
	}
}

// ProjectsPath returns the collection key holding a user's projects.
func ProjectsPath(namespace, userID string) string {
	return fmt.Sprintf("artifacts/%s/users/%s/projects", namespace, userID)
}

// ManagerPasswordPath returns the document key of the namespace's manager password.
func ManagerPasswordPath(namespace string) string {
	return fmt.Sprintf("artifacts/%s/settings/managerPassword", namespace)
}

// ManagerPasswordSetting is the stored manager password document.
type ManagerPasswordSetting struct {
	PasswordHash string    `json:"-"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ManagerPasswordStatus is the public view of the manager password setting.
type ManagerPasswordStatus struct {
	Configured bool       `json:"configured"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
}

// ProjectQuery is a question raised by an employee about a project.
type ProjectQuery struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"projectId"`
	ProjectName string    `json:"projectName"`
	RaisedBy    string    `json:"raisedBy"`
	Message     string    `json:"message,omitempty"`
	RaisedAt    time.Time `json:"raisedAt"`
}
