package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/projectdesk/projectdesk/internal/model"
)

// Common errors for project repository operations.
var (
	ErrProjectNotFound = errors.New("project not found")
	ErrProjectExists   = errors.New("project already exists")
)

const projectColumns = `id, owner_user_id, name, description, status, assigned_to,
	due_date, creation_date, manager_assigned, manager_name`

// ListProjects returns every project in the collection in insertion order.
func (r *Repository) ListProjects(ctx context.Context, collection string) ([]model.Project, error) {
	query := `SELECT ` + projectColumns + `
		FROM projects
		WHERE collection = $1
		ORDER BY id ASC
	`

	rows, err := r.pool.Query(ctx, query, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]model.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}

	return projects, nil
}

// GetProject retrieves a single project from the collection.
func (r *Repository) GetProject(ctx context.Context, collection, id string) (*model.Project, error) {
	query := `SELECT ` + projectColumns + `
		FROM projects
		WHERE collection = $1 AND id = $2
	`

	p, err := scanProject(r.pool.QueryRow(ctx, query, collection, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return p, nil
}

// CreateProject inserts a project into the collection.
func (r *Repository) CreateProject(ctx context.Context, collection string, p *model.Project) error {
	query := `
		INSERT INTO projects (id, collection, owner_user_id, name, description, status,
			assigned_to, due_date, creation_date, manager_assigned, manager_name, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
	`

	_, err := r.pool.Exec(ctx, query,
		p.ID,
		collection,
		p.OwnerUserID,
		p.Name,
		p.Description,
		p.Status,
		p.AssignedTo,
		p.DueDate,
		p.CreationDate,
		p.ManagerAssigned,
		p.ManagerName,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrProjectExists
		}
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

// UpdateProject overwrites the mutable fields of a project.
// creation_date and ownership are never touched.
func (r *Repository) UpdateProject(ctx context.Context, collection string, p *model.Project) error {
	query := `
		UPDATE projects
		SET name = $3, description = $4, status = $5, assigned_to = $6, due_date = $7,
			manager_assigned = $8, manager_name = $9, updated_at = NOW()
		WHERE collection = $1 AND id = $2
	`

	result, err := r.pool.Exec(ctx, query,
		collection,
		p.ID,
		p.Name,
		p.Description,
		p.Status,
		p.AssignedTo,
		p.DueDate,
		p.ManagerAssigned,
		p.ManagerName,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrProjectNotFound
	}

	return nil
}

// UpdateProjectStatus sets only the status field.
func (r *Repository) UpdateProjectStatus(ctx context.Context, collection, id string, status model.ProjectStatus) error {
	query := `
		UPDATE projects
		SET status = $3, updated_at = NOW()
		WHERE collection = $1 AND id = $2
	`

	result, err := r.pool.Exec(ctx, query, collection, id, status)
	if err != nil {
		return fmt.Errorf("failed to update project status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrProjectNotFound
	}

	return nil
}

// DeleteProject permanently removes a project.
func (r *Repository) DeleteProject(ctx context.Context, collection, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrProjectNotFound
	}

	return nil
}

func scanProject(row pgx.Row) (*model.Project, error) {
	var (
		p       model.Project
		status  string
		dueDate time.Time
		created time.Time
	)
	err := row.Scan(
		&p.ID,
		&p.OwnerUserID,
		&p.Name,
		&p.Description,
		&status,
		&p.AssignedTo,
		&dueDate,
		&created,
		&p.ManagerAssigned,
		&p.ManagerName,
	)
	if err != nil {
		return nil, err
	}
	p.Status = model.ProjectStatus(status)
	p.DueDate = dueDate.UTC()
	p.CreationDate = created.UTC()
	return &p, nil
}
