package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/projectdesk/projectdesk/internal/cache"
	"github.com/projectdesk/projectdesk/internal/metrics"
	"github.com/projectdesk/projectdesk/internal/model"
	"github.com/projectdesk/projectdesk/internal/realtime"
	"github.com/projectdesk/projectdesk/internal/repository"
)

// ProjectStore persists projects and namespace settings.
// repository.Repository implements it.
type ProjectStore interface {
	ListProjects(ctx context.Context, collection string) ([]model.Project, error)
	GetProject(ctx context.Context, collection, id string) (*model.Project, error)
	CreateProject(ctx context.Context, collection string, p *model.Project) error
	UpdateProject(ctx context.Context, collection string, p *model.Project) error
	UpdateProjectStatus(ctx context.Context, collection, id string, status model.ProjectStatus) error
	DeleteProject(ctx context.Context, collection, id string) error
	GetManagerPassword(ctx context.Context, path string) (*model.ManagerPasswordSetting, error)
	PutManagerPassword(ctx context.Context, path string, setting *model.ManagerPasswordSetting) error
}

// AttemptLimiter bounds manager password attempts. cache.Cache implements it.
type AttemptLimiter interface {
	CheckRoleSwitchLimit(ctx context.Context, userID string, maxAttempts int, window time.Duration) (*cache.RateLimitResult, error)
	ResetRoleSwitchLimit(ctx context.Context, userID string) error
}

// QueryLog stores raised project queries. cache.Cache implements it.
type QueryLog interface {
	AppendQuery(ctx context.Context, q *model.ProjectQuery) error
	RecentQueries(ctx context.Context, limit int) ([]model.ProjectQuery, error)
}

// ProjectServiceConfig holds the tunables of a ProjectService.
type ProjectServiceConfig struct {
	Namespace             string
	RoleSwitchMaxAttempts int
	RoleSwitchWindow      time.Duration
}

// ProjectService handles projects, the manager password and role switches.
// Every operation is scoped to the caller's own project collection.
type ProjectService struct {
	store   ProjectStore
	broker  realtime.Broker
	limiter AttemptLimiter
	queries QueryLog
	cfg     ProjectServiceConfig
	logger  *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

// NewProjectService creates a new ProjectService. limiter and queries may be
// nil: role switches are then unlimited and raised queries are only logged.
func NewProjectService(store ProjectStore, broker realtime.Broker, limiter AttemptLimiter, queries QueryLog, cfg ProjectServiceConfig, logger *slog.Logger, recorder metrics.Recorder) *ProjectService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "default"
	}
	return &ProjectService{
		store:   store,
		broker:  broker,
		limiter: limiter,
		queries: queries,
		cfg:     cfg,
		logger:  logger.With("component", "service.projects"),
		metrics: recorder,
		now:     time.Now,
	}
}

func (s *ProjectService) collection(userID string) string {
	return model.ProjectsPath(s.cfg.Namespace, userID)
}

// Watch returns the live feed of the user's full project list.
func (s *ProjectService) Watch(userID string) *realtime.Feed[[]model.Project] {
	collection := s.collection(userID)
	return realtime.NewFeed(s.broker, collection, func(ctx context.Context) ([]model.Project, error) {
		start := time.Now()
		defer func() { s.metrics.ObserveSnapshotLoad(time.Since(start)) }()
		return s.store.ListProjects(ctx, collection)
	}, s.logger)
}

// List returns a one-shot snapshot of the user's projects in insertion order.
func (s *ProjectService) List(ctx context.Context, userID string) ([]model.Project, error) {
	projects, err := s.store.ListProjects(ctx, s.collection(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// Get returns one of the user's projects.
func (s *ProjectService) Get(ctx context.Context, userID, id string) (*model.Project, error) {
	p, err := s.store.GetProject(ctx, s.collection(userID), id)
	if err != nil {
		return nil, mapProjectErr(err, "get")
	}
	return p, nil
}

// ProjectInput defines input for creating a project.
type ProjectInput struct {
	Name            string
	Description     string
	Status          model.ProjectStatus
	AssignedTo      string
	DueDate         *time.Time
	ManagerAssigned bool
	ManagerName     string
}

// Create adds a project to the user's collection.
func (s *ProjectService) Create(ctx context.Context, userID string, input ProjectInput) (*model.Project, error) {
	missing := requireFields(
		[2]string{"name", input.Name},
		[2]string{"description", input.Description},
		[2]string{"assignedTo", input.AssignedTo},
	)
	if input.DueDate == nil || input.DueDate.IsZero() {
		missing = append(missing, "dueDate")
	}
	if strings.TrimSpace(input.ManagerName) == "" {
		missing = append(missing, "managerName")
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Missing: missing}
	}

	status := input.Status
	if status == "" {
		status = model.StatusPending
	}
	if !status.IsValid() {
		return nil, ErrInvalidStatus
	}

	p := &model.Project{
		ID:              ulid.Make().String(),
		Name:            strings.TrimSpace(input.Name),
		Description:     strings.TrimSpace(input.Description),
		Status:          status,
		AssignedTo:      strings.TrimSpace(input.AssignedTo),
		DueDate:         input.DueDate.UTC(),
		CreationDate:    s.now().UTC(),
		ManagerAssigned: input.ManagerAssigned,
		ManagerName:     strings.TrimSpace(input.ManagerName),
		OwnerUserID:     userID,
	}

	collection := s.collection(userID)
	if err := s.store.CreateProject(ctx, collection, p); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.metrics.IncProjectCreated()
	s.logger.Info("project_created", "user_id", userID, "project_id", p.ID)
	s.publish(ctx, collection)

	return p, nil
}

// Update merges a partial update into a project. creationDate never changes.
func (s *ProjectService) Update(ctx context.Context, userID, id string, patch model.ProjectPatch) (*model.Project, error) {
	if patch.IsEmpty() {
		return nil, &ValidationError{Message: "no fields to update"}
	}
	patch = trimPatch(patch)
	if missing := emptyPatchFields(patch); len(missing) > 0 {
		return nil, &ValidationError{Missing: missing}
	}
	if patch.Status != nil && !patch.Status.IsValid() {
		return nil, ErrInvalidStatus
	}

	collection := s.collection(userID)
	p, err := s.store.GetProject(ctx, collection, id)
	if err != nil {
		return nil, mapProjectErr(err, "update")
	}

	patch.Apply(p)
	p.DueDate = p.DueDate.UTC()

	if err := s.store.UpdateProject(ctx, collection, p); err != nil {
		return nil, mapProjectErr(err, "update")
	}

	s.metrics.IncProjectUpdated()
	s.logger.Info("project_updated", "user_id", userID, "project_id", id)
	s.publish(ctx, collection)

	return p, nil
}

// UpdateStatus changes only the status of a project.
func (s *ProjectService) UpdateStatus(ctx context.Context, userID, id string, status model.ProjectStatus) (*model.Project, error) {
	if !status.IsValid() {
		return nil, ErrInvalidStatus
	}

	collection := s.collection(userID)
	if err := s.store.UpdateProjectStatus(ctx, collection, id, status); err != nil {
		return nil, mapProjectErr(err, "update status of")
	}

	s.metrics.IncProjectUpdated()
	s.logger.Info("project_status_updated", "user_id", userID, "project_id", id, "status", status)
	s.publish(ctx, collection)

	p, err := s.store.GetProject(ctx, collection, id)
	if err != nil {
		return nil, mapProjectErr(err, "get")
	}
	return p, nil
}

// Delete permanently removes a project.
func (s *ProjectService) Delete(ctx context.Context, userID, id string) error {
	collection := s.collection(userID)
	if err := s.store.DeleteProject(ctx, collection, id); err != nil {
		return mapProjectErr(err, "delete")
	}

	s.metrics.IncProjectDeleted()
	s.logger.Info("project_deleted", "user_id", userID, "project_id", id)
	s.publish(ctx, collection)

	return nil
}

// publish announces a change. The write already happened, so a failed
// notification is logged rather than returned.
func (s *ProjectService) publish(ctx context.Context, topic string) {
	if err := s.broker.PublishChange(ctx, topic); err != nil {
		s.logger.Warn("failed to publish change", "topic", topic, "error", err)
	}
}

func trimPatch(patch model.ProjectPatch) model.ProjectPatch {
	trim := func(v *string) *string {
		if v == nil {
			return nil
		}
		t := strings.TrimSpace(*v)
		return &t
	}
	patch.Name = trim(patch.Name)
	patch.Description = trim(patch.Description)
	patch.AssignedTo = trim(patch.AssignedTo)
	patch.ManagerName = trim(patch.ManagerName)
	return patch
}

func emptyPatchFields(patch model.ProjectPatch) []string {
	var missing []string
	check := func(name string, v *string) {
		if v != nil && strings.TrimSpace(*v) == "" {
			missing = append(missing, name)
		}
	}
	check("name", patch.Name)
	check("description", patch.Description)
	check("assignedTo", patch.AssignedTo)
	if patch.DueDate != nil && patch.DueDate.IsZero() {
		missing = append(missing, "dueDate")
	}
	check("managerName", patch.ManagerName)
	return missing
}

func mapProjectErr(err error, op string) error {
	if errors.Is(err, repository.ErrProjectNotFound) {
		return ErrProjectNotFound
	}
	return fmt.Errorf("failed to %s project: %w", op, err)
}
