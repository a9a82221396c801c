package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/projectdesk/projectdesk/internal/client"
	"github.com/projectdesk/projectdesk/internal/dashboard"
	"github.com/projectdesk/projectdesk/internal/handler/dto"
	"github.com/projectdesk/projectdesk/internal/model"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("170")).
			Bold(true)

	pastStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	inputStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	statusStyles = map[model.ProjectStatus]lipgloss.Style{
		model.StatusPending:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		model.StatusInProgress: lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		model.StatusCompleted:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	}
)

// api is the part of client.Client the dashboard uses.
type api interface {
	dashboard.ManagerAuthority
	Login(ctx context.Context, email, password string) error
	SwitchRole(ctx context.Context, role model.Role, password string) (*dto.RoleResponse, error)
	UpdateStatus(ctx context.Context, id string, status model.ProjectStatus) (*model.Project, error)
	DeleteProject(ctx context.Context, id string) error
	RaiseQuery(ctx context.Context, id, message string) (*model.ProjectQuery, error)
	SetManagerPassword(ctx context.Context, password string) error
	WatchProjects(ctx context.Context, opts client.ListOptions, fn func([]model.Project) error) error
}

type step int

const (
	stepEnteringEmail step = iota
	stepEnteringPassword
	stepLoggingIn
	stepDashboard
	stepSearching
	stepManagerPassword
	stepNewManagerPassword
	stepQueryMessage
)

// statusCycle is the order the status filter steps through. Empty is "all".
var statusCycle = []model.ProjectStatus{"", model.StatusPending, model.StatusInProgress, model.StatusCompleted}

type snapshotMsg []model.Project
type watchEndedMsg struct{ err error }
type loginSuccessMsg struct{}
type roleChangedMsg struct{}
type doneMsg struct{ text string }
type errMsg struct{ err error }

type dashboardModel struct {
	ctx  context.Context
	api  api
	gate *dashboard.RoleGate
	loc  *time.Location
	now  func() time.Time

	step         step
	email        string
	currentInput string
	message      string
	quitting     bool

	feed     chan tea.Msg
	projects []model.Project
	visible  []model.Project
	filter   dashboard.Filter
	cursor   int
}

func newDashboardModel(ctx context.Context, c api, email string, loc *time.Location) dashboardModel {
	m := dashboardModel{
		ctx:    ctx,
		api:    c,
		gate:   dashboard.NewRoleGate(c),
		loc:    loc,
		now:    time.Now,
		step:   stepEnteringEmail,
		filter: dashboard.DefaultFilter(),
	}
	if email != "" {
		m.email = email
		m.step = stepEnteringPassword
	}
	return m
}

func (m dashboardModel) Init() tea.Cmd {
	return nil
}

func (m dashboardModel) login(password string) tea.Cmd {
	return func() tea.Msg {
		if err := m.api.Login(m.ctx, m.email, password); err != nil {
			if client.IsStatus(err, http.StatusBadRequest) {
				return errMsg{errors.New("invalid email or password")}
			}
			return errMsg{err}
		}
		return loginSuccessMsg{}
	}
}

// startWatch streams snapshots into m.feed until the context ends.
func (m dashboardModel) startWatch() {
	go func() {
		err := m.api.WatchProjects(m.ctx, client.ListOptions{}, func(projects []model.Project) error {
			select {
			case m.feed <- snapshotMsg(projects):
				return nil
			case <-m.ctx.Done():
				return m.ctx.Err()
			}
		})
		select {
		case m.feed <- watchEndedMsg{err: err}:
		case <-m.ctx.Done():
		}
	}()
}

func waitForFeed(feed chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-feed
	}
}

func (m dashboardModel) selectRole(role model.Role) tea.Cmd {
	return func() tea.Msg {
		if role == model.RoleEmployee {
			if _, err := m.api.SwitchRole(m.ctx, model.RoleEmployee, ""); err != nil {
				return errMsg{err}
			}
		}
		if err := m.gate.SelectRole(m.ctx, role); err != nil {
			return errMsg{err}
		}
		return roleChangedMsg{}
	}
}

func (m dashboardModel) submitManagerPassword(password string) tea.Cmd {
	return func() tea.Msg {
		if err := m.gate.Submit(m.ctx, password); err != nil {
			return errMsg{err}
		}
		return roleChangedMsg{}
	}
}

func (m dashboardModel) advanceStatus(p model.Project) tea.Cmd {
	next := model.ValidStatuses[p.Status.Rank()%len(model.ValidStatuses)]
	return func() tea.Msg {
		if _, err := m.api.UpdateStatus(m.ctx, p.ID, next); err != nil {
			return errMsg{err}
		}
		return doneMsg{fmt.Sprintf("%s is now %s", p.Name, next)}
	}
}

func (m dashboardModel) deleteProject(p model.Project) tea.Cmd {
	return func() tea.Msg {
		if err := m.api.DeleteProject(m.ctx, p.ID); err != nil {
			return errMsg{err}
		}
		return doneMsg{"Deleted " + p.Name}
	}
}

func (m dashboardModel) raiseQuery(p model.Project, message string) tea.Cmd {
	return func() tea.Msg {
		if _, err := m.api.RaiseQuery(m.ctx, p.ID, message); err != nil {
			return errMsg{err}
		}
		return doneMsg{"Query raised for " + p.Name}
	}
}

func (m dashboardModel) setManagerPassword(password string) tea.Cmd {
	return func() tea.Msg {
		if err := m.api.SetManagerPassword(m.ctx, password); err != nil {
			return errMsg{err}
		}
		return doneMsg{"Manager password saved"}
	}
}

func (m *dashboardModel) refresh() {
	m.visible = dashboard.Apply(m.projects, m.filter, m.now().In(m.loc))
	if m.cursor >= len(m.visible) {
		m.cursor = max(len(m.visible)-1, 0)
	}
}

func (m dashboardModel) selected() (model.Project, bool) {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return model.Project{}, false
	}
	return m.visible[m.cursor], true
}

func (m dashboardModel) controls() dashboard.Controls {
	return dashboard.ControlsFor(m.gate.Role())
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		if m.step == stepDashboard {
			return m.updateDashboard(msg)
		}
		return m.updateInput(msg)

	case loginSuccessMsg:
		m.step = stepDashboard
		m.message = successStyle.Render("✓ Logged in as " + m.email)
		m.feed = make(chan tea.Msg, 1)
		m.startWatch()
		return m, waitForFeed(m.feed)

	case snapshotMsg:
		m.projects = []model.Project(msg)
		m.refresh()
		return m, waitForFeed(m.feed)

	case watchEndedMsg:
		if msg.err != nil {
			m.message = errorStyle.Render("✗ Live updates stopped: " + msg.err.Error())
		}
		return m, nil

	case roleChangedMsg:
		m.step = stepDashboard
		switch {
		case m.gate.State() == dashboard.StateAwaitingPassword:
			m.step = stepManagerPassword
			m.message = ""
		case m.gate.SetupRequired():
			m.message = successStyle.Render("✓ Manager role granted. No password is set yet, press P to set one.")
		default:
			m.message = successStyle.Render("✓ Role: " + string(m.gate.Role()))
		}
		return m, nil

	case doneMsg:
		m.message = successStyle.Render("✓ " + msg.text)
		return m, nil

	case errMsg:
		m.message = errorStyle.Render("✗ " + msg.err.Error())
		switch m.step {
		case stepLoggingIn:
			m.step = stepEnteringPassword
		case stepManagerPassword:
			// Still awaiting; the gate kept the employee role.
		default:
			m.step = stepDashboard
		}
		if m.email == "" {
			m.step = stepEnteringEmail
		}
		return m, nil
	}

	return m, nil
}

func (m dashboardModel) updateDashboard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	controls := m.controls()

	switch msg.String() {
	case "q", "esc":
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}

	case "/":
		m.step = stepSearching
		m.currentInput = m.filter.Search

	case "f":
		for i, s := range statusCycle {
			if s == m.filter.Status {
				m.filter.Status = statusCycle[(i+1)%len(statusCycle)]
				break
			}
		}
		m.refresh()

	case "p":
		m.filter.ShowPast = !m.filter.ShowPast
		m.refresh()

	case "m":
		if m.gate.Role() == model.RoleManager {
			return m, m.selectRole(model.RoleEmployee)
		}
		return m, m.selectRole(model.RoleManager)

	case "s":
		if p, ok := m.selected(); ok {
			return m, m.advanceStatus(p)
		}

	case "x":
		if p, ok := m.selected(); ok && controls.DeleteProject {
			return m, m.deleteProject(p)
		}

	case "?":
		if _, ok := m.selected(); ok && controls.RaiseQuery {
			m.step = stepQueryMessage
			m.currentInput = ""
		}

	case "P":
		if controls.SetPassword {
			m.step = stepNewManagerPassword
			m.currentInput = ""
		}
	}

	return m, nil
}

func (m dashboardModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		if m.step == stepManagerPassword {
			m.gate.Cancel()
		}
		if m.step >= stepDashboard {
			m.step = stepDashboard
		}
		m.currentInput = ""
		return m, nil

	case tea.KeyBackspace:
		if len(m.currentInput) > 0 {
			runes := []rune(m.currentInput)
			m.currentInput = string(runes[:len(runes)-1])
		}
		if m.step == stepSearching {
			m.filter.Search = m.currentInput
			m.refresh()
		}
		return m, nil

	case tea.KeyRunes, tea.KeySpace:
		m.currentInput += msg.String()
		if m.step == stepSearching {
			m.filter.Search = m.currentInput
			m.refresh()
		}
		return m, nil

	case tea.KeyEnter:
		input := m.currentInput
		m.currentInput = ""

		switch m.step {
		case stepEnteringEmail:
			if input != "" {
				m.email = strings.TrimSpace(input)
				m.step = stepEnteringPassword
			}

		case stepEnteringPassword:
			if input != "" {
				m.step = stepLoggingIn
				m.message = "Logging in..."
				return m, m.login(input)
			}

		case stepSearching:
			m.step = stepDashboard

		case stepManagerPassword:
			return m, m.submitManagerPassword(input)

		case stepNewManagerPassword:
			m.step = stepDashboard
			if strings.TrimSpace(input) != "" {
				return m, m.setManagerPassword(input)
			}

		case stepQueryMessage:
			m.step = stepDashboard
			if p, ok := m.selected(); ok {
				return m, m.raiseQuery(p, input)
			}
		}
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.quitting {
		return ""
	}

	var s strings.Builder

	s.WriteString(titleStyle.Render("Project Dashboard"))
	s.WriteString("\n")

	switch m.step {
	case stepEnteringEmail:
		s.WriteString(promptStyle.Render("Email:") + "\n")
		s.WriteString(inputStyle.Render("> " + m.currentInput))
		s.WriteString("\n\nPress Enter\n")
		if m.message != "" {
			s.WriteString("\n" + m.message + "\n")
		}
		return s.String()

	case stepEnteringPassword:
		s.WriteString(promptStyle.Render("Password for "+m.email+":") + "\n")
		s.WriteString(inputStyle.Render("> " + strings.Repeat("•", len([]rune(m.currentInput)))))
		s.WriteString("\n\nPress Enter\n")
		if m.message != "" {
			s.WriteString("\n" + m.message + "\n")
		}
		return s.String()

	case stepLoggingIn:
		s.WriteString(m.message + "\n")
		return s.String()
	}

	s.WriteString(m.header())
	s.WriteString("\n\n")
	s.WriteString(m.table())
	s.WriteString("\n")

	switch m.step {
	case stepSearching:
		s.WriteString(promptStyle.Render("Search: ") + inputStyle.Render(m.currentInput) + "\n")
	case stepManagerPassword:
		s.WriteString(promptStyle.Render("Manager password: ") + inputStyle.Render(strings.Repeat("•", len([]rune(m.currentInput)))) + "\n")
	case stepNewManagerPassword:
		s.WriteString(promptStyle.Render("New manager password: ") + inputStyle.Render(strings.Repeat("•", len([]rune(m.currentInput)))) + "\n")
	case stepQueryMessage:
		s.WriteString(promptStyle.Render("Query message (optional): ") + inputStyle.Render(m.currentInput) + "\n")
	}

	if m.message != "" {
		s.WriteString(m.message + "\n")
	}
	s.WriteString("\n" + helpStyle.Render(m.help()) + "\n")

	return s.String()
}

func (m dashboardModel) header() string {
	status := "All"
	if m.filter.Status != "" {
		status = string(m.filter.Status)
	}
	past := "shown"
	if !m.filter.ShowPast {
		past = "hidden"
	}
	return fmt.Sprintf("Role: %s   Status: %s   Past due: %s   Search: %q   %d/%d projects",
		m.gate.Role(), status, past, m.filter.Search, len(m.visible), len(m.projects))
}

func (m dashboardModel) table() string {
	if len(m.visible) == 0 {
		return pastStyle.Render("  No projects match.") + "\n"
	}

	today := m.now().In(m.loc)
	var s strings.Builder
	s.WriteString(fmt.Sprintf("  %-24s %-12s %-14s %-10s %s\n", "NAME", "STATUS", "ASSIGNED TO", "DUE", "MANAGER"))
	for i, p := range m.visible {
		cursor := " "
		name := truncate(p.Name, 24)
		if i == m.cursor {
			cursor = ">"
			name = selectedStyle.Render(fmt.Sprintf("%-24s", name))
		} else {
			name = fmt.Sprintf("%-24s", name)
		}

		status := statusStyles[p.Status].Render(fmt.Sprintf("%-12s", p.Status))
		due := p.DueDate.In(m.loc).Format(dto.DateLayout)
		if dashboard.IsPast(p, today) {
			due = pastStyle.Render(due)
		}

		s.WriteString(fmt.Sprintf("%s %s %s %-14s %-10s %s\n",
			cursor, name, status, truncate(p.AssignedTo, 14), due, p.ManagerName))
	}
	return s.String()
}

func (m dashboardModel) help() string {
	keys := []string{"↑/↓ move", "/ search", "f status", "p past due", "m role", "s next status"}
	controls := m.controls()
	if controls.DeleteProject {
		keys = append(keys, "x delete")
	}
	if controls.SetPassword {
		keys = append(keys, "P set password")
	}
	if controls.RaiseQuery {
		keys = append(keys, "? raise query")
	}
	return strings.Join(append(keys, "q quit"), " · ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
