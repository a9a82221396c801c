// Package servicetest provides in-memory stores for exercising the services
// and the HTTP layer without MongoDB or PostgreSQL.
package servicetest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/projectdesk/projectdesk/internal/credstore"
	"github.com/projectdesk/projectdesk/internal/model"
	"github.com/projectdesk/projectdesk/internal/repository"
)

// UserStore is an in-memory service.UserStore that behaves like
// credstore.UserRepository: emails are unique and lookups by ID omit the hash.
type UserStore struct {
	mu      sync.Mutex
	byID    map[string]*model.User
	byEmail map[string]*model.User
	nextID  int
}

// NewUserStore returns an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{byID: map[string]*model.User{}, byEmail: map[string]*model.User{}}
}

func (s *UserStore) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(user.Email))
	if _, ok := s.byEmail[email]; ok {
		return credstore.ErrEmailExists
	}
	s.nextID++
	user.ID = fmt.Sprintf("%024x", s.nextID)
	user.Email = email

	cp := *user
	s.byID[cp.ID] = &cp
	s.byEmail[email] = &cp
	return nil
}

func (s *UserStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, credstore.ErrUserNotFound
	}
	return u.Public(), nil
}

func (s *UserStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, credstore.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// ProjectStore is an in-memory service.ProjectStore. Projects keep insertion
// order within a collection, like the ORDER BY id of the SQL store.
type ProjectStore struct {
	mu       sync.Mutex
	projects map[string][]model.Project
	settings map[string]model.ManagerPasswordSetting
}

// NewProjectStore returns an empty ProjectStore.
func NewProjectStore() *ProjectStore {
	return &ProjectStore{
		projects: map[string][]model.Project{},
		settings: map[string]model.ManagerPasswordSetting{},
	}
}

func (s *ProjectStore) ListProjects(_ context.Context, collection string) ([]model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Project{}, s.projects[collection]...), nil
}

func (s *ProjectStore) GetProject(_ context.Context, collection, id string) (*model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(collection, id)
	if i < 0 {
		return nil, repository.ErrProjectNotFound
	}
	p := s.projects[collection][i]
	return &p, nil
}

func (s *ProjectStore) CreateProject(_ context.Context, collection string, p *model.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index(collection, p.ID) >= 0 {
		return repository.ErrProjectExists
	}
	s.projects[collection] = append(s.projects[collection], *p)
	return nil
}

func (s *ProjectStore) UpdateProject(_ context.Context, collection string, p *model.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(collection, p.ID)
	if i < 0 {
		return repository.ErrProjectNotFound
	}
	created := s.projects[collection][i].CreationDate
	s.projects[collection][i] = *p
	s.projects[collection][i].CreationDate = created
	return nil
}

func (s *ProjectStore) UpdateProjectStatus(_ context.Context, collection, id string, status model.ProjectStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(collection, id)
	if i < 0 {
		return repository.ErrProjectNotFound
	}
	s.projects[collection][i].Status = status
	return nil
}

func (s *ProjectStore) DeleteProject(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(collection, id)
	if i < 0 {
		return repository.ErrProjectNotFound
	}
	list := s.projects[collection]
	s.projects[collection] = append(list[:i:i], list[i+1:]...)
	return nil
}

func (s *ProjectStore) GetManagerPassword(_ context.Context, path string) (*model.ManagerPasswordSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	setting, ok := s.settings[path]
	if !ok {
		return nil, repository.ErrSettingNotFound
	}
	return &setting, nil
}

func (s *ProjectStore) PutManagerPassword(_ context.Context, path string, setting *model.ManagerPasswordSetting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[path] = *setting
	return nil
}

func (s *ProjectStore) index(collection, id string) int {
	for i, p := range s.projects[collection] {
		if p.ID == id {
			return i
		}
	}
	return -1
}
