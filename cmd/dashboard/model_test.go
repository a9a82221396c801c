package main

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectdesk/projectdesk/internal/client"
	"github.com/projectdesk/projectdesk/internal/dashboard"
	"github.com/projectdesk/projectdesk/internal/handler/dto"
	"github.com/projectdesk/projectdesk/internal/model"
)

type fakeAPI struct {
	configured   bool
	password     string
	loginErr     error
	statusCalls  []model.ProjectStatus
	deleted      []string
	queries      []string
	roleSwitches []model.Role
}

func (f *fakeAPI) PasswordConfigured(context.Context) (bool, error) { return f.configured, nil }

func (f *fakeAPI) Elevate(_ context.Context, password string) (bool, error) {
	if !f.configured {
		return true, nil
	}
	if password != f.password {
		return false, dashboard.ErrIncorrectPassword
	}
	return false, nil
}

func (f *fakeAPI) Login(context.Context, string, string) error { return f.loginErr }

func (f *fakeAPI) SwitchRole(_ context.Context, role model.Role, _ string) (*dto.RoleResponse, error) {
	f.roleSwitches = append(f.roleSwitches, role)
	return &dto.RoleResponse{Role: role}, nil
}

func (f *fakeAPI) UpdateStatus(_ context.Context, id string, status model.ProjectStatus) (*model.Project, error) {
	f.statusCalls = append(f.statusCalls, status)
	return &model.Project{ID: id, Status: status}, nil
}

func (f *fakeAPI) DeleteProject(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeAPI) RaiseQuery(_ context.Context, id, message string) (*model.ProjectQuery, error) {
	f.queries = append(f.queries, id+":"+message)
	return &model.ProjectQuery{ProjectID: id, Message: message}, nil
}

func (f *fakeAPI) SetManagerPassword(_ context.Context, password string) error {
	f.configured = true
	f.password = password
	return nil
}

func (f *fakeAPI) WatchProjects(ctx context.Context, _ client.ListOptions, _ func([]model.Project) error) error {
	<-ctx.Done()
	return nil
}

var today = time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)

func sampleProjects() []model.Project {
	day := func(d int) time.Time { return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC) }
	return []model.Project{
		{ID: "1", Name: "Old report", Status: model.StatusCompleted, AssignedTo: "Ann", DueDate: day(1)},
		{ID: "2", Name: "Website", Status: model.StatusPending, AssignedTo: "Ben", DueDate: day(20)},
		{ID: "3", Name: "Audit", Status: model.StatusInProgress, AssignedTo: "Cy", DueDate: day(18)},
	}
}

func newTestModel(t *testing.T, f *fakeAPI) dashboardModel {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	m := newDashboardModel(ctx, f, "ann@example.com", time.UTC)
	m.now = func() time.Time { return today }
	m.step = stepDashboard
	m.feed = make(chan tea.Msg, 1)

	next, _ := m.Update(snapshotMsg(sampleProjects()))
	return next.(dashboardModel)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m dashboardModel, keys ...string) (dashboardModel, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(key(k))
		m = next.(dashboardModel)
	}
	return m, cmd
}

// run executes cmd and feeds its message back into the model.
func run(t *testing.T, m dashboardModel, cmd tea.Cmd) dashboardModel {
	t.Helper()
	require.NotNil(t, cmd)
	next, _ := m.Update(cmd())
	return next.(dashboardModel)
}

func names(projects []model.Project) []string {
	out := make([]string, len(projects))
	for i, p := range projects {
		out[i] = p.Name
	}
	return out
}

func TestSnapshotIsFilteredAndSorted(t *testing.T) {
	m := newTestModel(t, &fakeAPI{})

	assert.Equal(t, []string{"Website", "Audit", "Old report"}, names(m.visible))
	assert.Len(t, m.projects, 3)
}

func TestFilterKeys(t *testing.T) {
	m := newTestModel(t, &fakeAPI{})

	m, _ = press(t, m, "p")
	assert.False(t, m.filter.ShowPast)
	assert.Equal(t, []string{"Website", "Audit"}, names(m.visible))

	m, _ = press(t, m, "f", "f")
	assert.Equal(t, model.StatusInProgress, m.filter.Status)
	assert.Equal(t, []string{"Audit"}, names(m.visible))

	m, _ = press(t, m, "f", "f")
	assert.Equal(t, model.ProjectStatus(""), m.filter.Status)

	m, _ = press(t, m, "p", "/", "w", "e", "b")
	assert.Equal(t, stepSearching, m.step)
	assert.Equal(t, []string{"Website"}, names(m.visible))

	m, _ = press(t, m, "backspace", "backspace", "backspace", "enter")
	assert.Equal(t, stepDashboard, m.step)
	assert.Len(t, m.visible, 3)
}

func TestCursorStaysInRange(t *testing.T) {
	m := newTestModel(t, &fakeAPI{})

	m, _ = press(t, m, "down", "down", "down", "down")
	assert.Equal(t, 2, m.cursor)

	m, _ = press(t, m, "p")
	assert.Equal(t, 1, m.cursor)

	m, _ = press(t, m, "up", "up", "up")
	assert.Equal(t, 0, m.cursor)
}

func TestEmployeeControls(t *testing.T) {
	f := &fakeAPI{}
	m := newTestModel(t, f)

	m, cmd := press(t, m, "x")
	assert.Nil(t, cmd, "employees cannot delete")

	m, _ = press(t, m, "P")
	assert.Equal(t, stepDashboard, m.step, "employees cannot set the manager password")

	m, _ = press(t, m, "?")
	require.Equal(t, stepQueryMessage, m.step)
	m, cmd = press(t, m, "h", "i", "enter")
	m = run(t, m, cmd)
	assert.Equal(t, []string{"2:hi"}, f.queries)
	assert.Contains(t, m.message, "Query raised for Website")

	_, cmd = press(t, m, "s")
	run(t, m, cmd)
	assert.Equal(t, []model.ProjectStatus{model.StatusInProgress}, f.statusCalls)
}

func TestRoleSwitchWithoutPassword(t *testing.T) {
	f := &fakeAPI{}
	m := newTestModel(t, f)

	m, cmd := press(t, m, "m")
	m = run(t, m, cmd)

	assert.Equal(t, model.RoleManager, m.gate.Role())
	assert.Contains(t, m.message, "press P")
	assert.Contains(t, m.help(), "x delete")

	m, cmd = press(t, m, "P", "s", "3", "c", "enter")
	m = run(t, m, cmd)
	assert.True(t, f.configured)
	assert.Equal(t, "s3c", f.password)

	_, cmd = press(t, m, "x")
	run(t, m, cmd)
	assert.Equal(t, []string{"2"}, f.deleted)

	m, cmd = press(t, m, "m")
	m = run(t, m, cmd)
	assert.Equal(t, model.RoleEmployee, m.gate.Role())
	assert.Equal(t, []model.Role{model.RoleEmployee}, f.roleSwitches)
}

func TestRoleSwitchWithPassword(t *testing.T) {
	f := &fakeAPI{configured: true, password: "letmein"}
	m := newTestModel(t, f)

	m, cmd := press(t, m, "m")
	m = run(t, m, cmd)
	require.Equal(t, stepManagerPassword, m.step)
	assert.Equal(t, model.RoleEmployee, m.gate.Role())

	m, cmd = press(t, m, "n", "o", "enter")
	m = run(t, m, cmd)
	assert.Equal(t, stepManagerPassword, m.step, "wrong password keeps the prompt")
	assert.Contains(t, m.message, dashboard.ErrIncorrectPassword.Error())
	assert.Equal(t, model.RoleEmployee, m.gate.Role())

	m, cmd = press(t, m, "l", "e", "t", "m", "e", "i", "n", "enter")
	m = run(t, m, cmd)
	assert.Equal(t, stepDashboard, m.step)
	assert.Equal(t, model.RoleManager, m.gate.Role())
}

func TestCancelPasswordPrompt(t *testing.T) {
	f := &fakeAPI{configured: true, password: "letmein"}
	m := newTestModel(t, f)

	m, cmd := press(t, m, "m")
	m = run(t, m, cmd)
	require.Equal(t, stepManagerPassword, m.step)

	m, _ = press(t, m, "esc")
	assert.Equal(t, stepDashboard, m.step)
	assert.Equal(t, dashboard.StateEmployee, m.gate.State())
}

func TestLoginFlow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newDashboardModel(ctx, &fakeAPI{}, "", time.UTC)
	assert.Equal(t, stepEnteringEmail, m.step)

	m, _ = press(t, m, "a", "@", "b", "enter")
	assert.Equal(t, stepEnteringPassword, m.step)
	assert.Equal(t, "a@b", m.email)
	assert.NotContains(t, m.View(), "pw")

	m, cmd := press(t, m, "p", "w")
	assert.NotContains(t, m.View(), "pw")

	m, cmd = press(t, m, "enter")
	assert.Equal(t, stepLoggingIn, m.step)
	m = run(t, m, cmd)
	assert.Equal(t, stepDashboard, m.step)
	assert.NotNil(t, m.feed)
}

func TestViewShowsProjects(t *testing.T) {
	m := newTestModel(t, &fakeAPI{})

	view := m.View()
	assert.Contains(t, view, "Website")
	assert.Contains(t, view, "Role: employee")
	assert.Contains(t, view, "3/3 projects")
	assert.True(t, strings.Contains(view, "? raise query"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc…", truncate("abcdef", 4))
}
