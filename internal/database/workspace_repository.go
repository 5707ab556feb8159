package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/inquizitive/pkg/models"
)

// WorkspaceRepository handles database operations for workspaces
type WorkspaceRepository struct {
	db sqlx.ExtContext
}

// NewWorkspaceRepository creates a repository bound to a database or transaction
func NewWorkspaceRepository(db sqlx.ExtContext) *WorkspaceRepository {
	return &WorkspaceRepository{db: db}
}

// List returns a user's workspaces ordered by name
func (r *WorkspaceRepository) List(ctx context.Context, userID int64) ([]models.Workspace, error) {
	var workspaces []models.Workspace
	query := r.db.Rebind(`
		SELECT id, user_id, name, created_at FROM workspaces
		WHERE user_id = ?
		ORDER BY name
	`)
	if err := sqlx.SelectContext(ctx, r.db, &workspaces, query, userID); err != nil {
		return nil, errors.Wrap(err, "failed to list workspaces")
	}
	return workspaces, nil
}

// Create inserts a workspace. It reports false when the user already has
// one with that name.
func (r *WorkspaceRepository) Create(ctx context.Context, userID int64, name string) (bool, error) {
	query := r.db.Rebind(`
		INSERT INTO workspaces (id, user_id, name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, name) DO NOTHING
	`)
	result, err := r.db.ExecContext(ctx, query, uuid.NewString(), userID, name, dbTime(time.Now()))
	if err != nil {
		return false, errors.Wrap(err, "failed to create workspace")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to get rows affected")
	}
	return rows > 0, nil
}

// DeleteByUser removes all of a user's workspaces
func (r *WorkspaceRepository) DeleteByUser(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM workspaces WHERE user_id = ?`), userID)
	return errors.Wrap(err, "failed to delete workspaces")
}
