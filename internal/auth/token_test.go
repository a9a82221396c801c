package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/projectdesk/projectdesk/internal/model"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeRevocations map[string]bool

func (f fakeRevocations) IsTokenRevoked(_ context.Context, tokenID string) (bool, error) {
	return f[tokenID], nil
}

func TestTokenManager_IssueAndParse(t *testing.T) {
	t.Parallel()

	m := NewTokenManager(testSecret, time.Hour)
	tok, issued, err := m.Issue(model.Identity{UserID: "u-1", Username: "ana", Email: "ana@example.com", Role: model.RoleManager})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if issued.TokenID == "" {
		t.Error("expected token id to be set")
	}

	got, err := m.Parse(tok)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if got.UserID != "u-1" || got.Username != "ana" || got.Email != "ana@example.com" {
		t.Errorf("unexpected identity: %+v", got)
	}
	if got.Role != model.RoleManager {
		t.Errorf("Role = %q, want manager", got.Role)
	}
	if got.TokenID != issued.TokenID {
		t.Errorf("TokenID = %q, want %q", got.TokenID, issued.TokenID)
	}
}

func TestTokenManager_DefaultsRoleToEmployee(t *testing.T) {
	t.Parallel()

	m := NewTokenManager(testSecret, time.Hour)
	tok, _, err := m.Issue(model.Identity{UserID: "u-1"})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	got, err := m.Parse(tok)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if got.Role != model.RoleEmployee {
		t.Errorf("Role = %q, want employee", got.Role)
	}
}

func TestTokenManager_Expired(t *testing.T) {
	t.Parallel()

	m := NewTokenManager(testSecret, -time.Minute)
	tok, _, err := m.Issue(model.Identity{UserID: "u-1"})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := m.Parse(tok); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenManager_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, _, err := NewTokenManager(testSecret, time.Hour).Issue(model.Identity{UserID: "u-1"})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	other := NewTokenManager([]byte("another-secret-another-secret-xx"), time.Hour)
	if _, err := other.Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenManager_Malformed(t *testing.T) {
	t.Parallel()

	m := NewTokenManager(testSecret, time.Hour)
	for _, raw := range []string{"garbage", "a.b.c", ""} {
		if _, err := m.Parse(raw); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Parse(%q) error = %v, want ErrInvalidToken", raw, err)
		}
	}
}

func TestTokenManager_EmptyUserID(t *testing.T) {
	t.Parallel()

	if _, _, err := NewTokenManager(testSecret, time.Hour).Issue(model.Identity{}); err == nil {
		t.Fatal("expected error for empty user id")
	}
}

func TestResolver_Resolve(t *testing.T) {
	t.Parallel()

	m := NewTokenManager(testSecret, time.Hour)
	tok, issued, err := m.Issue(model.Identity{UserID: "u-1"})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	testCases := []struct {
		name    string
		setup   func(r *http.Request)
		revoked fakeRevocations
		wantErr error
	}{
		{
			name:  "bearer header",
			setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) },
		},
		{
			name:  "cookie",
			setup: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: TokenCookieName, Value: tok}) },
		},
		{
			name:    "missing",
			setup:   func(r *http.Request) {},
			wantErr: ErrMissingToken,
		},
		{
			name:    "non bearer scheme",
			setup:   func(r *http.Request) { r.Header.Set("Authorization", "Basic "+tok) },
			wantErr: ErrMissingToken,
		},
		{
			name:    "malformed",
			setup:   func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") },
			wantErr: ErrInvalidToken,
		},
		{
			name:    "revoked",
			setup:   func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) },
			revoked: fakeRevocations{issued.TokenID: true},
			wantErr: ErrTokenRevoked,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			resolver := NewResolver(m, tc.revoked)
			req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
			tc.setup(req)

			identity, err := resolver.Resolve(req)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				if !IsAuthError(err) {
					t.Errorf("expected %v to be an auth error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if identity.UserID != "u-1" {
				t.Errorf("UserID = %q, want u-1", identity.UserID)
			}
		})
	}
}

func TestIdentityContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if IdentityFromContext(ctx) != nil {
		t.Error("expected nil identity on empty context")
	}
	if UserIDFromContext(ctx) != "" {
		t.Error("expected empty user id on empty context")
	}

	ctx = ContextWithIdentity(ctx, &model.Identity{UserID: "u-9"})
	if got := UserIDFromContext(ctx); got != "u-9" {
		t.Errorf("UserIDFromContext = %q, want u-9", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("expected MustIdentityFromContext to panic without identity")
		}
	}()
	MustIdentityFromContext(context.Background())
}
