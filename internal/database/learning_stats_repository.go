package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/inquizitive/pkg/models"
)

// LearningStatsRepository handles database operations for learning statistics
type LearningStatsRepository struct {
	db sqlx.ExtContext
}

// NewLearningStatsRepository creates a repository bound to a database or transaction
func NewLearningStatsRepository(db sqlx.ExtContext) *LearningStatsRepository {
	return &LearningStatsRepository{db: db}
}

// Get returns a user's statistics, or nil when the user has none yet
func (r *LearningStatsRepository) Get(ctx context.Context, userID int64) (*models.LearningStats, error) {
	var stats models.LearningStats
	query := r.db.Rebind(`
		SELECT user_id, total_xp, current_streak, last_activity_date, items_mastered, updated_at
		FROM learning_stats
		WHERE user_id = ?
	`)
	err := sqlx.GetContext(ctx, r.db, &stats, query, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get learning stats")
	}
	return &stats, nil
}

// Upsert creates or replaces a user's statistics
func (r *LearningStatsRepository) Upsert(ctx context.Context, stats *models.LearningStats) error {
	stats.UpdatedAt = dbTime(time.Now())
	query := r.db.Rebind(`
		INSERT INTO learning_stats (
			user_id, total_xp, current_streak, last_activity_date, items_mastered, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			total_xp = excluded.total_xp,
			current_streak = excluded.current_streak,
			last_activity_date = excluded.last_activity_date,
			items_mastered = excluded.items_mastered,
			updated_at = excluded.updated_at
	`)
	_, err := r.db.ExecContext(ctx, query,
		stats.UserID,
		stats.TotalXP,
		stats.CurrentStreak,
		stats.LastActivityDate,
		stats.ItemsMastered,
		stats.UpdatedAt,
	)
	return errors.Wrap(err, "failed to upsert learning stats")
}

// DeleteByUser removes a user's statistics
func (r *LearningStatsRepository) DeleteByUser(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM learning_stats WHERE user_id = ?`), userID)
	return errors.Wrap(err, "failed to delete learning stats")
}
