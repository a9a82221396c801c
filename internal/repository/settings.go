package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/projectdesk/projectdesk/internal/model"
)

// ErrSettingNotFound is returned when a settings document has never been written.
var ErrSettingNotFound = errors.New("setting not found")

// GetManagerPassword reads the manager password document stored at path.
func (r *Repository) GetManagerPassword(ctx context.Context, path string) (*model.ManagerPasswordSetting, error) {
	var setting model.ManagerPasswordSetting
	err := r.pool.QueryRow(ctx,
		`SELECT secret_hash, updated_at FROM settings WHERE path = $1`, path,
	).Scan(&setting.PasswordHash, &setting.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettingNotFound
		}
		return nil, fmt.Errorf("failed to get manager password: %w", err)
	}
	setting.UpdatedAt = setting.UpdatedAt.UTC()
	return &setting, nil
}

// PutManagerPassword writes the manager password document, replacing any previous value.
func (r *Repository) PutManagerPassword(ctx context.Context, path string, setting *model.ManagerPasswordSetting) error {
	query := `
		INSERT INTO settings (path, secret_hash, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (path) DO UPDATE
		SET secret_hash = EXCLUDED.secret_hash, updated_at = EXCLUDED.updated_at
	`

	if _, err := r.pool.Exec(ctx, query, path, setting.PasswordHash, setting.UpdatedAt); err != nil {
		return fmt.Errorf("failed to put manager password: %w", err)
	}
	return nil
}
