package model

import (
	"slices"
	"time"
)

// Role is the dashboard role carried inside an identity token.
type Role string

// Role constants.
const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
)

// ValidRoles contains all valid role values.
var ValidRoles = []Role{RoleEmployee, RoleManager}

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return slices.Contains(ValidRoles, r)
}

// Identity is the verified content of an identity token.
type Identity struct {
	UserID    string
	Username  string
	Email     string
	Role      Role
	TokenID   string
	ExpiresAt time.Time
}

// IsManager reports whether the identity carries the manager role.
func (i *Identity) IsManager() bool {
	return i != nil && i.Role == RoleManager
}

// WithRole returns a copy of the identity with a different role.
// The token fields are cleared since the copy needs a fresh token.
func (i Identity) WithRole(role Role) Identity {
	i.Role = role
	i.TokenID = ""
	i.ExpiresAt = time.Time{}
	return i
}
