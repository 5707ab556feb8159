package database

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/inquizitive/pkg/models"
)

const reviewItemColumns = `id, user_id, subject, topic, question_json, srs_level, ease_factor,
	interval_days, last_reviewed_at, next_review_at, created_at, tags, version`

// DueCount is the number of due items a user has
type DueCount struct {
	UserID int64 `db:"user_id"`
	Count  int   `db:"due_count"`
}

// ItemActivity is the creation and last review time of one item
type ItemActivity struct {
	CreatedAt      time.Time  `db:"created_at"`
	LastReviewedAt *time.Time `db:"last_reviewed_at"`
}

// ReviewItemRepository handles database operations for review items
type ReviewItemRepository struct {
	db sqlx.ExtContext
}

// NewReviewItemRepository creates a repository bound to a database or transaction
func NewReviewItemRepository(db sqlx.ExtContext) *ReviewItemRepository {
	return &ReviewItemRepository{db: db}
}

// Create inserts a new review item, filling in the ID and creation time when unset
func (r *ReviewItemRepository) Create(ctx context.Context, item *models.ReviewItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	if item.Subject == "" {
		item.Subject = models.DefaultSubject
	}
	if item.Tags == nil {
		item.Tags = models.Tags{}
	}
	normalizeItemTimes(item)
	item.Version = 0

	query := r.db.Rebind(`
		INSERT INTO review_items (` + reviewItemColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := r.db.ExecContext(ctx, query,
		item.ID,
		item.UserID,
		item.Subject,
		item.Topic,
		item.Question,
		item.SRSLevel,
		item.EaseFactor,
		item.IntervalDays,
		item.LastReviewedAt,
		item.NextReviewAt,
		item.CreatedAt,
		item.Tags,
		item.Version,
	)
	return errors.Wrap(err, "failed to create review item")
}

// GetByID returns a review item by ID
func (r *ReviewItemRepository) GetByID(ctx context.Context, id string) (*models.ReviewItem, error) {
	var item models.ReviewItem
	query := r.db.Rebind(`SELECT ` + reviewItemColumns + ` FROM review_items WHERE id = ?`)
	err := sqlx.GetContext(ctx, r.db, &item, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "review item %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get review item")
	}
	return &item, nil
}

// ListByUser returns every item a user owns, oldest first
func (r *ReviewItemRepository) ListByUser(ctx context.Context, userID int64) ([]models.ReviewItem, error) {
	var items []models.ReviewItem
	query := r.db.Rebind(`
		SELECT ` + reviewItemColumns + ` FROM review_items
		WHERE user_id = ?
		ORDER BY created_at ASC, id ASC
	`)
	if err := sqlx.SelectContext(ctx, r.db, &items, query, userID); err != nil {
		return nil, errors.Wrap(err, "failed to list review items")
	}
	return items, nil
}

// ListByTopic returns a user's items for one topic
func (r *ReviewItemRepository) ListByTopic(ctx context.Context, userID int64, topic string) ([]models.ReviewItem, error) {
	var items []models.ReviewItem
	query := r.db.Rebind(`
		SELECT ` + reviewItemColumns + ` FROM review_items
		WHERE user_id = ? AND topic = ?
		ORDER BY created_at ASC, id ASC
	`)
	if err := sqlx.SelectContext(ctx, r.db, &items, query, userID, topic); err != nil {
		return nil, errors.Wrap(err, "failed to list review items by topic")
	}
	return items, nil
}

// Search returns a user's items of one subject whose topic contains search,
// ignoring case, newest first. An empty search matches every topic.
func (r *ReviewItemRepository) Search(ctx context.Context, userID int64, subject, search string) ([]models.ReviewItem, error) {
	var items []models.ReviewItem
	query := r.db.Rebind(`
		SELECT ` + reviewItemColumns + ` FROM review_items
		WHERE user_id = ? AND subject = ? AND LOWER(topic) LIKE ? ESCAPE '\'
		ORDER BY created_at DESC, id DESC
	`)
	pattern := "%" + likeEscaper.Replace(strings.ToLower(search)) + "%"
	if err := sqlx.SelectContext(ctx, r.db, &items, query, userID, subject, pattern); err != nil {
		return nil, errors.Wrap(err, "failed to search review items")
	}
	return items, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// GetDue returns up to limit items of a subject whose review time has passed,
// most overdue first
func (r *ReviewItemRepository) GetDue(ctx context.Context, userID int64, subject string, now time.Time, limit int) ([]models.ReviewItem, error) {
	var items []models.ReviewItem
	query := r.db.Rebind(`
		SELECT ` + reviewItemColumns + ` FROM review_items
		WHERE user_id = ? AND subject = ? AND next_review_at <= ?
		ORDER BY next_review_at ASC, created_at ASC, id ASC
		LIMIT ?
	`)
	if err := sqlx.SelectContext(ctx, r.db, &items, query, userID, subject, dbTime(now), limit); err != nil {
		return nil, errors.Wrap(err, "failed to get due review items")
	}
	return items, nil
}

// UpdateSchedule writes the scheduling columns of item. The write only lands
// if nobody else updated the row since item was read.
func (r *ReviewItemRepository) UpdateSchedule(ctx context.Context, item *models.ReviewItem) error {
	normalizeItemTimes(item)
	query := r.db.Rebind(`
		UPDATE review_items SET
			srs_level = ?,
			ease_factor = ?,
			interval_days = ?,
			last_reviewed_at = ?,
			next_review_at = ?,
			version = version + 1
		WHERE id = ? AND version = ?
	`)
	result, err := r.db.ExecContext(ctx, query,
		item.SRSLevel,
		item.EaseFactor,
		item.IntervalDays,
		item.LastReviewedAt,
		item.NextReviewAt,
		item.ID,
		item.Version,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update review schedule")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.Wrapf(ErrConcurrentUpdate, "review item %s at version %d", item.ID, item.Version)
	}
	item.Version++
	return nil
}

// Update overwrites every mutable column of item
func (r *ReviewItemRepository) Update(ctx context.Context, item *models.ReviewItem) error {
	if item.Tags == nil {
		item.Tags = models.Tags{}
	}
	normalizeItemTimes(item)
	query := r.db.Rebind(`
		UPDATE review_items SET
			subject = ?,
			topic = ?,
			question_json = ?,
			srs_level = ?,
			ease_factor = ?,
			interval_days = ?,
			last_reviewed_at = ?,
			next_review_at = ?,
			tags = ?,
			version = version + 1
		WHERE id = ? AND user_id = ?
	`)
	result, err := r.db.ExecContext(ctx, query,
		item.Subject,
		item.Topic,
		item.Question,
		item.SRSLevel,
		item.EaseFactor,
		item.IntervalDays,
		item.LastReviewedAt,
		item.NextReviewAt,
		item.Tags,
		item.ID,
		item.UserID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update review item")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.Wrapf(ErrNotFound, "review item %s", item.ID)
	}
	item.Version++
	return nil
}

// CountMastered counts a user's items that reached the mastered level
func (r *ReviewItemRepository) CountMastered(ctx context.Context, userID int64, minLevel int) (int, error) {
	var count int
	query := r.db.Rebind(`SELECT COUNT(*) FROM review_items WHERE user_id = ? AND srs_level >= ?`)
	if err := sqlx.GetContext(ctx, r.db, &count, query, userID, minLevel); err != nil {
		return 0, errors.Wrap(err, "failed to count mastered items")
	}
	return count, nil
}

// DueCounts returns, per user, how many items are due at now
func (r *ReviewItemRepository) DueCounts(ctx context.Context, now time.Time) ([]DueCount, error) {
	var counts []DueCount
	query := r.db.Rebind(`
		SELECT user_id, COUNT(*) AS due_count FROM review_items
		WHERE next_review_at <= ?
		GROUP BY user_id
		ORDER BY user_id
	`)
	if err := sqlx.SelectContext(ctx, r.db, &counts, query, dbTime(now)); err != nil {
		return nil, errors.Wrap(err, "failed to count due items")
	}
	return counts, nil
}

// CountDue returns how many items a single user has due at now
func (r *ReviewItemRepository) CountDue(ctx context.Context, userID int64, now time.Time) (int, error) {
	var count int
	query := r.db.Rebind(`SELECT COUNT(*) FROM review_items WHERE user_id = ? AND next_review_at <= ?`)
	if err := sqlx.GetContext(ctx, r.db, &count, query, userID, dbTime(now)); err != nil {
		return 0, errors.Wrap(err, "failed to count due items")
	}
	return count, nil
}

// DeleteByID removes one item owned by userID
func (r *ReviewItemRepository) DeleteByID(ctx context.Context, userID int64, id string) error {
	query := r.db.Rebind(`DELETE FROM review_items WHERE id = ? AND user_id = ?`)
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return errors.Wrap(err, "failed to delete review item")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.Wrapf(ErrNotFound, "review item %s", id)
	}
	return nil
}

// Activity returns the creation and last review times of a user's items
func (r *ReviewItemRepository) Activity(ctx context.Context, userID int64) ([]ItemActivity, error) {
	var rows []ItemActivity
	query := r.db.Rebind(`SELECT created_at, last_reviewed_at FROM review_items WHERE user_id = ?`)
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, userID); err != nil {
		return nil, errors.Wrap(err, "failed to load item activity")
	}
	return rows, nil
}

// DeleteByUser removes all of a user's items
func (r *ReviewItemRepository) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM review_items WHERE user_id = ?`), userID)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete review items")
	}
	return result.RowsAffected()
}

// dbTime normalizes timestamps so sqlite's text ordering matches time ordering
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func normalizeItemTimes(item *models.ReviewItem) {
	item.NextReviewAt = dbTime(item.NextReviewAt)
	item.CreatedAt = dbTime(item.CreatedAt)
	if item.LastReviewedAt != nil {
		t := dbTime(*item.LastReviewedAt)
		item.LastReviewedAt = &t
	}
}
