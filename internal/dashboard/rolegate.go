package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/projectdesk/projectdesk/internal/model"
)

// ErrIncorrectPassword is returned when the manager password does not match.
var ErrIncorrectPassword = errors.New("incorrect manager password")

// ErrNotAwaitingPassword is returned by Submit outside the awaiting-password state.
var ErrNotAwaitingPassword = errors.New("role gate is not awaiting a password")

// GateState is a state of the role switch.
type GateState string

const (
	StateEmployee         GateState = "employee"
	StateAwaitingPassword GateState = "awaiting-password"
	StateManager          GateState = "manager"
)

// ManagerAuthority decides manager elevation.
type ManagerAuthority interface {
	// PasswordConfigured reports whether a manager password has been set.
	PasswordConfigured(ctx context.Context) (bool, error)
	// Elevate requests the manager role. setupRequired is true when no
	// password was configured and the grant was automatic. A wrong password
	// yields ErrIncorrectPassword.
	Elevate(ctx context.Context, password string) (setupRequired bool, err error)
}

// RoleGate is the employee/manager toggle. Incorrect passwords are never
// locked out here; any limit lives behind the authority.
type RoleGate struct {
	authority ManagerAuthority

	mu            sync.Mutex
	state         GateState
	setupRequired bool
}

// NewRoleGate creates a gate in the employee state.
func NewRoleGate(authority ManagerAuthority) *RoleGate {
	return &RoleGate{authority: authority, state: StateEmployee}
}

// State returns the current state.
func (g *RoleGate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Role returns the effective role. Awaiting a password is still employee.
func (g *RoleGate) Role() model.Role {
	if g.State() == StateManager {
		return model.RoleManager
	}
	return model.RoleEmployee
}

// SetupRequired reports whether manager was granted without a configured
// password, meaning one should be set now.
func (g *RoleGate) SetupRequired() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.setupRequired
}

// SelectRole handles a role selection. Choosing manager grants it at once
// when no password is configured, otherwise the gate awaits a password.
func (g *RoleGate) SelectRole(ctx context.Context, role model.Role) error {
	switch role {
	case model.RoleEmployee:
		g.set(StateEmployee, false)
		return nil
	case model.RoleManager:
	default:
		return fmt.Errorf("unknown role %q", role)
	}

	configured, err := g.authority.PasswordConfigured(ctx)
	if err != nil {
		return fmt.Errorf("check manager password: %w", err)
	}

	if configured {
		g.set(StateAwaitingPassword, false)
		return nil
	}

	setupRequired, err := g.authority.Elevate(ctx, "")
	if err != nil {
		return fmt.Errorf("grant manager role: %w", err)
	}
	g.set(StateManager, setupRequired)
	return nil
}

// Submit checks a password while awaiting one. On any failure the gate keeps
// awaiting and the role stays employee.
func (g *RoleGate) Submit(ctx context.Context, password string) error {
	if g.State() != StateAwaitingPassword {
		return ErrNotAwaitingPassword
	}

	setupRequired, err := g.authority.Elevate(ctx, password)
	if err != nil {
		return err
	}
	g.set(StateManager, setupRequired)
	return nil
}

// Cancel abandons a pending switch and returns to employee.
func (g *RoleGate) Cancel() {
	g.set(StateEmployee, false)
}

func (g *RoleGate) set(state GateState, setupRequired bool) {
	g.mu.Lock()
	g.state = state
	g.setupRequired = setupRequired
	g.mu.Unlock()
}
