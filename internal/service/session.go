package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/projectdesk/projectdesk/internal/auth"
	"github.com/projectdesk/projectdesk/internal/model"
	"github.com/projectdesk/projectdesk/internal/realtime"
	"github.com/projectdesk/projectdesk/internal/repository"
)

// RoleGrant is the outcome of a successful role switch.
type RoleGrant struct {
	Role model.Role `json:"role"`
	// SetupRequired is set when manager was granted because no password
	// exists yet; the caller should prompt to set one.
	SetupRequired bool `json:"setupRequired"`
}

// ManagerPasswordStatus reports whether a manager password is configured.
func (s *ProjectService) ManagerPasswordStatus(ctx context.Context) (model.ManagerPasswordStatus, error) {
	setting, err := s.store.GetManagerPassword(ctx, model.ManagerPasswordPath(s.cfg.Namespace))
	if err != nil {
		if errors.Is(err, repository.ErrSettingNotFound) {
			return model.ManagerPasswordStatus{}, nil
		}
		return model.ManagerPasswordStatus{}, fmt.Errorf("failed to read manager password: %w", err)
	}
	updated := setting.UpdatedAt
	return model.ManagerPasswordStatus{Configured: true, UpdatedAt: &updated}, nil
}

// WatchManagerPassword returns a live feed of the manager password status.
func (s *ProjectService) WatchManagerPassword() *realtime.Feed[model.ManagerPasswordStatus] {
	return realtime.NewFeed(s.broker, model.ManagerPasswordPath(s.cfg.Namespace), s.ManagerPasswordStatus, s.logger)
}

// SetManagerPassword replaces the namespace's manager password. Concurrent
// writers are not coordinated; the last one wins.
func (s *ProjectService) SetManagerPassword(ctx context.Context, password string) error {
	password = strings.TrimSpace(password)
	if password == "" {
		return &ValidationError{Missing: []string{"password"}}
	}

	hash, err := auth.HashSecret(password)
	if err != nil {
		return fmt.Errorf("failed to hash manager password: %w", err)
	}

	path := model.ManagerPasswordPath(s.cfg.Namespace)
	setting := &model.ManagerPasswordSetting{PasswordHash: hash, UpdatedAt: s.now().UTC()}
	if err := s.store.PutManagerPassword(ctx, path, setting); err != nil {
		return fmt.Errorf("failed to store manager password: %w", err)
	}

	s.logger.Info("manager_password_set")
	s.publish(ctx, path)
	return nil
}

// SwitchRole decides whether userID may take role. Employee is always
// granted. Manager is granted without a password while none is configured,
// otherwise only when password verifies.
func (s *ProjectService) SwitchRole(ctx context.Context, userID string, role model.Role, password string) (RoleGrant, error) {
	if !role.IsValid() {
		return RoleGrant{}, ErrInvalidRole
	}
	if role == model.RoleEmployee {
		return RoleGrant{Role: model.RoleEmployee}, nil
	}

	setting, err := s.store.GetManagerPassword(ctx, model.ManagerPasswordPath(s.cfg.Namespace))
	if err != nil {
		if errors.Is(err, repository.ErrSettingNotFound) {
			s.metrics.IncRoleSwitch("granted")
			s.logger.Info("manager_role_granted", "user_id", userID, "setup_required", true)
			return RoleGrant{Role: model.RoleManager, SetupRequired: true}, nil
		}
		return RoleGrant{}, fmt.Errorf("failed to read manager password: %w", err)
	}

	if err := s.checkAttemptLimit(ctx, userID); err != nil {
		return RoleGrant{}, err
	}

	ok, err := auth.VerifySecret(strings.TrimSpace(password), setting.PasswordHash)
	if err != nil {
		return RoleGrant{}, fmt.Errorf("failed to verify manager password: %w", err)
	}
	if !ok {
		s.metrics.IncRoleSwitch("rejected")
		s.logger.Warn("manager_role_rejected", "user_id", userID)
		return RoleGrant{}, ErrIncorrectPassword
	}

	if s.limiter != nil {
		if err := s.limiter.ResetRoleSwitchLimit(ctx, userID); err != nil {
			s.logger.Warn("failed to reset role switch limit", "user_id", userID, "error", err)
		}
	}

	s.metrics.IncRoleSwitch("granted")
	s.logger.Info("manager_role_granted", "user_id", userID, "setup_required", false)
	return RoleGrant{Role: model.RoleManager}, nil
}

// checkAttemptLimit fails open when the limiter itself is unavailable.
func (s *ProjectService) checkAttemptLimit(ctx context.Context, userID string) error {
	if s.limiter == nil {
		return nil
	}

	res, err := s.limiter.CheckRoleSwitchLimit(ctx, userID, s.cfg.RoleSwitchMaxAttempts, s.cfg.RoleSwitchWindow)
	if err != nil {
		s.logger.Warn("role switch limiter unavailable", "user_id", userID, "error", err)
		return nil
	}
	if !res.Allowed {
		s.metrics.IncRoleSwitch("limited")
		s.logger.Warn("manager_role_limited", "user_id", userID, "retry_after", res.RetryAfter)
		return &AttemptsExceededError{RetryAfter: res.RetryAfter}
	}
	return nil
}
