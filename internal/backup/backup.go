// Package backup exports a user's review data to a JSON document and
// restores it, either merging into or replacing what is stored.
package backup

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/inquizitive/internal/database"
	sr "github.com/example/inquizitive/internal/spaced_repetition"
	"github.com/example/inquizitive/pkg/logger"
	"github.com/example/inquizitive/pkg/models"
)

// Version is the only backup format this package reads and writes
const Version = "1.0"

// Mode selects how Import treats existing data
type Mode string

const (
	// Merge updates matching items and inserts the rest
	Merge Mode = "merge"
	// Replace deletes the user's data before importing
	Replace Mode = "replace"
)

var (
	ErrUnsupportedVersion = errors.New("unsupported backup version")
	ErrInvalidMode        = errors.New("invalid import mode")
)

// Backup is the exported document
type Backup struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exportedAt"`
	User       User      `json:"user"`
	Data       Data      `json:"data"`
}

type User struct {
	ID int64 `json:"id"`
}

type Data struct {
	ReviewItems   []models.ReviewItem   `json:"review_items"`
	LearningStats *models.LearningStats `json:"learning_stats"`
	Workspaces    []models.Workspace    `json:"workspaces"`
}

// ImportResult counts what an import changed
type ImportResult struct {
	Items      int  `json:"items"`
	Updated    int  `json:"updated"`
	Skipped    int  `json:"skipped"`
	Stats      bool `json:"stats"`
	Workspaces int  `json:"workspaces"`
}

// ParseMode converts a flag value into a Mode; empty means Merge
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", Merge:
		return Merge, nil
	case Replace:
		return Replace, nil
	}
	return "", errors.Wrapf(ErrInvalidMode, "%q", s)
}

// Manager exports and imports backups
type Manager struct {
	db  *sqlx.DB
	log *logger.Logger
	now func() time.Time
}

// NewManager creates a backup manager
func NewManager(db *sqlx.DB, log *logger.Logger) *Manager {
	return &Manager{db: db, log: log, now: time.Now}
}

// Export collects everything stored for userID
func (m *Manager) Export(ctx context.Context, userID int64) (*Backup, error) {
	items, err := database.NewReviewItemRepository(m.db).ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to export review items")
	}
	stats, err := database.NewLearningStatsRepository(m.db).Get(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to export learning stats")
	}
	workspaces, err := database.NewWorkspaceRepository(m.db).List(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to export workspaces")
	}

	if items == nil {
		items = []models.ReviewItem{}
	}
	if workspaces == nil {
		workspaces = []models.Workspace{}
	}

	return &Backup{
		Version:    Version,
		ExportedAt: m.now().UTC(),
		User:       User{ID: userID},
		Data: Data{
			ReviewItems:   items,
			LearningStats: stats,
			Workspaces:    workspaces,
		},
	}, nil
}

// Import restores b into userID's data. Items are matched by topic and
// question text. The whole import is one transaction.
func (m *Manager) Import(ctx context.Context, userID int64, b *Backup, mode Mode) (*ImportResult, error) {
	if b == nil || b.Version != Version {
		return nil, ErrUnsupportedVersion
	}
	if mode != Merge && mode != Replace {
		return nil, errors.Wrapf(ErrInvalidMode, "%q", mode)
	}

	result := &ImportResult{}
	err := database.WithTx(ctx, m.db, func(tx *sqlx.Tx) error {
		items := database.NewReviewItemRepository(tx)
		statsRepo := database.NewLearningStatsRepository(tx)
		workspaces := database.NewWorkspaceRepository(tx)

		if mode == Replace {
			if _, err := items.DeleteByUser(ctx, userID); err != nil {
				return err
			}
			if err := statsRepo.DeleteByUser(ctx, userID); err != nil {
				return err
			}
			if err := workspaces.DeleteByUser(ctx, userID); err != nil {
				return err
			}
		}

		existing, err := items.ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		byKey := make(map[string]models.ReviewItem, len(existing))
		for _, it := range existing {
			byKey[it.MatchKey()] = it
		}

		for _, src := range b.Data.ReviewItems {
			state := sr.State{Interval: src.IntervalDays, Repetition: src.SRSLevel, EaseFactor: src.EaseFactor}
			if err := state.Validate(); err != nil {
				m.log.Warn("skipping backup item", "topic", src.Topic, "error", err)
				result.Skipped++
				continue
			}

			item := src
			item.UserID = userID
			if item.Subject == "" {
				item.Subject = models.DefaultSubject
			}

			if match, ok := byKey[item.MatchKey()]; ok && mode == Merge {
				item.ID = match.ID
				if err := items.Update(ctx, &item); err != nil {
					return err
				}
				result.Updated++
				continue
			}

			item.ID = ""
			if item.CreatedAt.IsZero() {
				item.CreatedAt = m.now()
			}
			if err := items.Create(ctx, &item); err != nil {
				return err
			}
			byKey[item.MatchKey()] = item
			result.Items++
		}

		if s := b.Data.LearningStats; s != nil {
			stats := *s
			stats.UserID = userID
			if err := statsRepo.Upsert(ctx, &stats); err != nil {
				return err
			}
			result.Stats = true
		}

		for _, ws := range b.Data.Workspaces {
			created, err := workspaces.Create(ctx, userID, ws.Name)
			if err != nil {
				return err
			}
			if created {
				result.Workspaces++
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to import backup")
	}

	m.log.Info("backup imported",
		"user_id", userID,
		"mode", string(mode),
		"items", result.Items,
		"updated", result.Updated,
		"skipped", result.Skipped,
		"workspaces", result.Workspaces,
	)
	return result, nil
}

// WriteFile stores b as indented JSON
func WriteFile(path string, b *Backup) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode backup")
	}
	return errors.Wrap(os.WriteFile(path, data, 0600), "failed to write backup")
}

// ReadFile loads a backup written by WriteFile
func ReadFile(path string) (*Backup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read backup")
	}
	var b Backup
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, errors.Wrap(err, "failed to decode backup")
	}
	return &b, nil
}
