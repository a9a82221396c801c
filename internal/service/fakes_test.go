package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/projectdesk/projectdesk/internal/cache"
	"github.com/projectdesk/projectdesk/internal/credstore"
	"github.com/projectdesk/projectdesk/internal/model"
	"github.com/projectdesk/projectdesk/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ============================================================================
// Users
// ============================================================================

type fakeUserStore struct {
	mu        sync.Mutex
	byID      map[string]*model.User
	byEmail   map[string]*model.User
	createErr error
	lookupErr error
	nextID    int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{byID: map[string]*model.User{}, byEmail: map[string]*model.User{}}
}

func (f *fakeUserStore) CreateUser(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.byEmail[user.Email]; ok {
		return credstore.ErrEmailExists
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	cp := *user
	f.byID[user.ID] = &cp
	f.byEmail[user.Email] = &cp
	return nil
}

func (f *fakeUserStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, credstore.ErrUserNotFound
	}
	// Mirrors the projection of the real store.
	return u.Public(), nil
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, credstore.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

type fakeProfileCache struct {
	mu    sync.Mutex
	users map[string]*model.User
	sets  int
}

func (f *fakeProfileCache) GetUser(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id], nil
}

func (f *fakeProfileCache) SetUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.users == nil {
		f.users = map[string]*model.User{}
	}
	f.users[u.ID] = u
	f.sets++
	return nil
}

type fakeIssuer struct{}

func (fakeIssuer) Issue(identity model.Identity) (string, model.Identity, error) {
	identity.TokenID = "jti-" + identity.UserID
	identity.ExpiresAt = time.Now().Add(time.Hour)
	return "token-for-" + identity.UserID + "-" + string(identity.Role), identity, nil
}

type fakeRevoker struct {
	revoked map[string]time.Time
}

func (f *fakeRevoker) RevokeToken(_ context.Context, tokenID string, expiresAt time.Time) error {
	if f.revoked == nil {
		f.revoked = map[string]time.Time{}
	}
	f.revoked[tokenID] = expiresAt
	return nil
}

// ============================================================================
// Projects
// ============================================================================

type fakeProjectStore struct {
	mu       sync.Mutex
	projects map[string][]model.Project
	settings map[string]model.ManagerPasswordSetting
	listErr  error
}

func newFakeProjectStore() *fakeProjectStore {
	return &fakeProjectStore{
		projects: map[string][]model.Project{},
		settings: map[string]model.ManagerPasswordSetting{},
	}
}

func (f *fakeProjectStore) ListProjects(_ context.Context, collection string) ([]model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]model.Project{}, f.projects[collection]...), nil
}

func (f *fakeProjectStore) find(collection, id string) int {
	for i, p := range f.projects[collection] {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (f *fakeProjectStore) GetProject(_ context.Context, collection, id string) (*model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.find(collection, id)
	if i < 0 {
		return nil, repository.ErrProjectNotFound
	}
	p := f.projects[collection][i]
	return &p, nil
}

func (f *fakeProjectStore) CreateProject(_ context.Context, collection string, p *model.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects[collection] = append(f.projects[collection], *p)
	return nil
}

func (f *fakeProjectStore) UpdateProject(_ context.Context, collection string, p *model.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.find(collection, p.ID)
	if i < 0 {
		return repository.ErrProjectNotFound
	}
	stored := &f.projects[collection][i]
	created := stored.CreationDate
	*stored = *p
	stored.CreationDate = created
	return nil
}

func (f *fakeProjectStore) UpdateProjectStatus(_ context.Context, collection, id string, status model.ProjectStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.find(collection, id)
	if i < 0 {
		return repository.ErrProjectNotFound
	}
	f.projects[collection][i].Status = status
	return nil
}

func (f *fakeProjectStore) DeleteProject(_ context.Context, collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.find(collection, id)
	if i < 0 {
		return repository.ErrProjectNotFound
	}
	list := f.projects[collection]
	f.projects[collection] = append(list[:i:i], list[i+1:]...)
	return nil
}

func (f *fakeProjectStore) GetManagerPassword(_ context.Context, path string) (*model.ManagerPasswordSetting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.settings[path]
	if !ok {
		return nil, repository.ErrSettingNotFound
	}
	return &s, nil
}

func (f *fakeProjectStore) PutManagerPassword(_ context.Context, path string, s *model.ManagerPasswordSetting) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings[path] = *s
	return nil
}

// fakeLimiter allows a fixed number of attempts.
type fakeLimiter struct {
	remaining int
	err       error
	checks    int
	resets    int
}

func (f *fakeLimiter) CheckRoleSwitchLimit(context.Context, string, int, time.Duration) (*cache.RateLimitResult, error) {
	f.checks++
	if f.err != nil {
		return nil, f.err
	}
	if f.remaining <= 0 {
		return &cache.RateLimitResult{Allowed: false, RetryAfter: time.Minute}, nil
	}
	f.remaining--
	return &cache.RateLimitResult{Allowed: true, Remaining: int64(f.remaining)}, nil
}

func (f *fakeLimiter) ResetRoleSwitchLimit(context.Context, string) error {
	f.resets++
	return nil
}

type fakeQueryLog struct {
	queries []model.ProjectQuery
	limit   int
}

func (f *fakeQueryLog) AppendQuery(_ context.Context, q *model.ProjectQuery) error {
	q.ID = "q-" + q.ProjectID
	f.queries = append(f.queries, *q)
	return nil
}

func (f *fakeQueryLog) RecentQueries(_ context.Context, limit int) ([]model.ProjectQuery, error) {
	f.limit = limit
	out := make([]model.ProjectQuery, 0, len(f.queries))
	for i := len(f.queries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.queries[i])
	}
	return out, nil
}
