package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectdesk/projectdesk/internal/auth"
	"github.com/projectdesk/projectdesk/internal/credstore"
	"github.com/projectdesk/projectdesk/internal/metrics"
	"github.com/projectdesk/projectdesk/internal/model"
)

type userEnv struct {
	svc      *UserService
	store    *fakeUserStore
	profiles *fakeProfileCache
	revoker  *fakeRevoker
	metrics  *metrics.InMemoryRecorder
	hashes   int
}

func newUserEnv(t *testing.T) *userEnv {
	t.Helper()
	env := &userEnv{
		store:    newFakeUserStore(),
		profiles: &fakeProfileCache{},
		revoker:  &fakeRevoker{},
		metrics:  metrics.NewInMemory(),
	}
	env.svc = NewUserService(env.store, env.profiles, fakeIssuer{}, env.revoker, discardLogger(), env.metrics)
	env.svc.hashPassword = func(password string) (string, error) {
		env.hashes++
		return auth.HashPassword(password)
	}
	return env
}

func TestSignup_FreshEmail(t *testing.T) {
	env := newUserEnv(t)
	ctx := context.Background()

	user, err := env.svc.Signup(ctx, SignupInput{Username: "ana", Email: " Ana@Example.com ", Password: "pw123456"})
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.Empty(t, user.PasswordHash, "signup must not return the hash")
	assert.Equal(t, 1, env.hashes)

	stored, err := env.store.GetUserByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	ok, err := auth.CheckPassword("pw123456", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok, "stored hash verifies the password")

	found, err := env.svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, found.PasswordHash, "lookup excludes the password field")
	assert.Equal(t, uint64(1), env.metrics.Snapshot().SignupsSucceeded)
}

func TestSignup_DuplicateRejectedBeforeHashing(t *testing.T) {
	env := newUserEnv(t)
	ctx := context.Background()

	_, err := env.svc.Signup(ctx, SignupInput{Username: "ana", Email: "ana@example.com", Password: "pw"})
	require.NoError(t, err)
	require.Equal(t, 1, env.hashes)

	_, err = env.svc.Signup(ctx, SignupInput{Username: "other", Email: "ANA@example.com", Password: "pw2"})

	assert.ErrorIs(t, err, ErrUserExists)
	assert.Equal(t, 1, env.hashes, "no hashing for a duplicate email")
	assert.Equal(t, uint64(1), env.metrics.Snapshot().SignupsDuplicate)
}

func TestSignup_ConcurrentDuplicateMapsToExists(t *testing.T) {
	env := newUserEnv(t)
	env.store.createErr = credstore.ErrEmailExists

	_, err := env.svc.Signup(context.Background(), SignupInput{Username: "ana", Email: "ana@example.com", Password: "pw"})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestSignup_MissingFields(t *testing.T) {
	env := newUserEnv(t)

	_, err := env.svc.Signup(context.Background(), SignupInput{Email: "  "})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, []string{"username", "email", "password"}, vErr.Missing)
	assert.Zero(t, env.hashes)
}

func TestSignup_StoreLookupError(t *testing.T) {
	env := newUserEnv(t)
	boom := errors.New("mongo down")
	env.store.lookupErr = boom

	_, err := env.svc.Signup(context.Background(), SignupInput{Username: "a", Email: "a@b.c", Password: "p"})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, env.hashes)
}

func TestLogin(t *testing.T) {
	env := newUserEnv(t)
	ctx := context.Background()
	_, err := env.svc.Signup(ctx, SignupInput{Username: "ana", Email: "ana@example.com", Password: "pw123456"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"valid", "ana@example.com", "pw123456", nil},
		{"case insensitive email", "ANA@example.com", "pw123456", nil},
		{"wrong password", "ana@example.com", "nope", ErrInvalidCredentials},
		{"unknown email", "bob@example.com", "pw123456", ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := env.svc.Login(ctx, tt.email, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, res.Token)
			assert.Equal(t, model.RoleEmployee, res.Identity.Role)
			assert.Empty(t, res.User.PasswordHash)
		})
	}
}

func TestLogin_MissingFields(t *testing.T) {
	env := newUserEnv(t)

	_, err := env.svc.Login(context.Background(), "", "")
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, []string{"email", "password"}, vErr.Missing)
}

func TestLogout_RevokesToken(t *testing.T) {
	env := newUserEnv(t)
	_, identity, _ := fakeIssuer{}.Issue(model.Identity{UserID: "u1"})
	require.NoError(t, env.svc.Logout(context.Background(), &identity))

	assert.Contains(t, env.revoker.revoked, identity.TokenID)
}

func TestLogout_NoTokenID(t *testing.T) {
	env := newUserEnv(t)
	require.NoError(t, env.svc.Logout(context.Background(), &model.Identity{UserID: "u1"}))
	assert.Empty(t, env.revoker.revoked)
}

func TestGetUser_NotFound(t *testing.T) {
	env := newUserEnv(t)

	_, err := env.svc.GetUser(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGetUser_UsesProfileCache(t *testing.T) {
	env := newUserEnv(t)
	ctx := context.Background()
	user, err := env.svc.Signup(ctx, SignupInput{Username: "ana", Email: "ana@example.com", Password: "pw"})
	require.NoError(t, err)

	_, err = env.svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, env.profiles.sets)

	// Second lookup is served from the cache even if the store loses the user.
	delete(env.store.byID, user.ID)
	cached, err := env.svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana", cached.Username)
}
