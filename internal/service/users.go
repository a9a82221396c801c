package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/projectdesk/projectdesk/internal/auth"
	"github.com/projectdesk/projectdesk/internal/credstore"
	"github.com/projectdesk/projectdesk/internal/metrics"
	"github.com/projectdesk/projectdesk/internal/model"
)

// UserStore persists users. credstore.UserRepository implements it.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// ProfileCache caches public user profiles. cache.Cache implements it.
type ProfileCache interface {
	GetUser(ctx context.Context, userID string) (*model.User, error)
	SetUser(ctx context.Context, user *model.User) error
}

// TokenIssuer mints identity tokens. auth.TokenManager implements it.
type TokenIssuer interface {
	Issue(identity model.Identity) (string, model.Identity, error)
}

// TokenRevoker invalidates tokens before they expire. cache.Cache implements it.
type TokenRevoker interface {
	RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error
}

// UserService handles signup, login and profile lookups.
type UserService struct {
	users        UserStore
	profiles     ProfileCache
	tokens       TokenIssuer
	revoker      TokenRevoker
	logger       *slog.Logger
	metrics      metrics.Recorder
	hashPassword func(password string) (string, error)
}

// NewUserService creates a new UserService. profiles and revoker may be nil.
func NewUserService(users UserStore, profiles ProfileCache, tokens TokenIssuer, revoker TokenRevoker, logger *slog.Logger, recorder metrics.Recorder) *UserService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &UserService{
		users:        users,
		profiles:     profiles,
		tokens:       tokens,
		revoker:      revoker,
		logger:       logger.With("component", "service.users"),
		metrics:      recorder,
		hashPassword: auth.HashPassword,
	}
}

// SignupInput defines input for creating a user.
type SignupInput struct {
	Username string
	Email    string
	Password string
}

// Signup registers a new user. The existing-email check runs before the
// password is hashed.
func (s *UserService) Signup(ctx context.Context, input SignupInput) (*model.User, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))

	if missing := requireFields(
		[2]string{"username", username},
		[2]string{"email", email},
		[2]string{"password", input.Password},
	); len(missing) > 0 {
		s.metrics.IncSignup("invalid")
		return nil, &ValidationError{Missing: missing}
	}

	existing, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil && existing != nil:
		s.metrics.IncSignup("duplicate")
		return nil, ErrUserExists
	case err != nil && !errors.Is(err, credstore.ErrUserNotFound):
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	hash, err := s.hashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, credstore.ErrEmailExists) {
			// Lost the race against a concurrent signup.
			s.metrics.IncSignup("duplicate")
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.metrics.IncSignup("success")
	s.logger.Info("user_signed_up", "user_id", user.ID)

	return user.Public(), nil
}

// LoginResult is a successful login.
type LoginResult struct {
	Token    string
	Identity model.Identity
	User     *model.User
}

// Login verifies credentials and issues an employee identity token.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if missing := requireFields([2]string{"email", email}, [2]string{"password", password}); len(missing) > 0 {
		return nil, &ValidationError{Missing: missing}
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, credstore.ErrUserNotFound) {
			s.metrics.IncLogin("failed")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	ok, err := auth.CheckPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		s.metrics.IncLogin("failed")
		return nil, ErrInvalidCredentials
	}

	token, identity, err := s.tokens.Issue(model.Identity{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     model.RoleEmployee,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.metrics.IncLogin("success")
	s.logger.Info("user_logged_in", "user_id", user.ID)

	return &LoginResult{Token: token, Identity: identity, User: user.Public()}, nil
}

// Logout revokes the identity's token until it expires.
func (s *UserService) Logout(ctx context.Context, identity *model.Identity) error {
	if s.revoker == nil || identity == nil || identity.TokenID == "" {
		return nil
	}
	if err := s.revoker.RevokeToken(ctx, identity.TokenID, identity.ExpiresAt); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// GetUser returns the user's public profile, without the password hash.
func (s *UserService) GetUser(ctx context.Context, id string) (*model.User, error) {
	if s.profiles != nil {
		if cached, _ := s.profiles.GetUser(ctx, id); cached != nil {
			return cached, nil
		}
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, credstore.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	public := user.Public()
	if s.profiles != nil {
		if err := s.profiles.SetUser(ctx, public); err != nil {
			s.logger.Warn("failed to cache user profile", "user_id", id, "error", err)
		}
	}
	return public, nil
}

// IssueToken mints a fresh token for identity, typically after a role change.
func (s *UserService) IssueToken(identity model.Identity) (string, model.Identity, error) {
	token, issued, err := s.tokens.Issue(identity)
	if err != nil {
		return "", model.Identity{}, fmt.Errorf("failed to issue token: %w", err)
	}
	return token, issued, nil
}
