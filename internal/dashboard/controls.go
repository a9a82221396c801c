package dashboard

import "github.com/projectdesk/projectdesk/internal/model"

// Controls lists the actions the dashboard offers to a role.
// Both roles see every project; only the actions differ.
type Controls struct {
	AddProject    bool `json:"addProject"`
	EditProject   bool `json:"editProject"`
	DeleteProject bool `json:"deleteProject"`
	SetPassword   bool `json:"setPassword"`
	RaiseQuery    bool `json:"raiseQuery"`
}

// ControlsFor returns the controls available to role.
func ControlsFor(role model.Role) Controls {
	if role == model.RoleManager {
		return Controls{
			AddProject:    true,
			EditProject:   true,
			DeleteProject: true,
			SetPassword:   true,
		}
	}
	return Controls{RaiseQuery: true}
}
