// Package dashboard holds the view logic of the project dashboard: which
// projects are visible, in what order, and which controls a role gets.
// Everything here is pure except RoleGate, which talks to a ManagerAuthority.
package dashboard

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/projectdesk/projectdesk/internal/model"
)

// Filter is the dashboard filter state.
type Filter struct {
	// Search is matched case-insensitively against name, description,
	// assignee and manager name. Empty matches everything.
	Search string
	// Status restricts to one status. Empty matches every status.
	Status model.ProjectStatus
	// ShowPast includes projects whose due day is before today.
	ShowPast bool
	// Date, when set, keeps only projects due on that calendar day.
	Date *time.Time
}

// DefaultFilter returns the initial filter: everything visible, past included.
func DefaultFilter() Filter {
	return Filter{ShowPast: true}
}

// Matches reports whether p passes every criterion of f. Days are compared in
// today's location.
func Matches(p model.Project, f Filter, today time.Time) bool {
	if f.Search != "" && !matchesSearch(p, f.Search) {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}

	loc := today.Location()
	due := civilDay(p.DueDate.In(loc))

	if !f.ShowPast && due.Before(civilDay(today)) {
		return false
	}
	if f.Date != nil && !due.Equal(civilDay(f.Date.In(loc))) {
		return false
	}
	return true
}

// Apply returns the visible projects in display order: status rank ascending,
// then due date ascending. Ties keep their input order.
func Apply(projects []model.Project, f Filter, today time.Time) []model.Project {
	visible := make([]model.Project, 0, len(projects))
	for _, p := range projects {
		if Matches(p, f, today) {
			visible = append(visible, p)
		}
	}

	slices.SortStableFunc(visible, func(a, b model.Project) int {
		if c := cmp.Compare(a.Status.Rank(), b.Status.Rank()); c != 0 {
			return c
		}
		return a.DueDate.Compare(b.DueDate)
	})
	return visible
}

// IsPast reports whether the project's due day is strictly before today.
func IsPast(p model.Project, today time.Time) bool {
	return civilDay(p.DueDate.In(today.Location())).Before(civilDay(today))
}

func matchesSearch(p model.Project, search string) bool {
	needle := strings.ToLower(search)
	for _, field := range []string{p.Name, p.Description, p.AssignedTo, p.ManagerName} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// civilDay drops the clock and zone of t, keeping its calendar date.
func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
