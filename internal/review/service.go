package review

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/inquizitive/internal/database"
	sr "github.com/example/inquizitive/internal/spaced_repetition"
	"github.com/example/inquizitive/pkg/logger"
	"github.com/example/inquizitive/pkg/models"
)

// DefaultDueLimit caps how many due items one session fetches
const DefaultDueLimit = 20

var ErrInvalidInput = errors.New("invalid input")

// Outcome is what a single graded review produced
type Outcome struct {
	Item         models.ReviewItem
	State        sr.State
	NextReviewAt time.Time
	XPGained     int
	Stats        models.LearningStats
	// Mastered is set when this review carried the item into the mastered range
	Mastered bool
}

// Service drives review sessions: it reads due items, applies the scheduler
// and persists the results together with the learner's statistics
type Service struct {
	db       *sqlx.DB
	log      *logger.Logger
	now      func() time.Time
	dueLimit int
}

// Option customizes a Service
type Option func(*Service)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithDueLimit sets how many due items GetDueReviews returns at most
func WithDueLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.dueLimit = limit
		}
	}
}

// NewService creates a review service on top of db
func NewService(db *sqlx.DB, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		db:       db,
		log:      log,
		now:      time.Now,
		dueLimit: DefaultDueLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetDueReviews returns the user's items of subject that are due now
func (s *Service) GetDueReviews(ctx context.Context, userID int64, subject string) ([]models.ReviewItem, error) {
	if subject == "" {
		subject = models.DefaultSubject
	}
	items, err := database.NewReviewItemRepository(s.db).GetDue(ctx, userID, subject, s.now(), s.dueLimit)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// SubmitReview grades one item, reschedules it and updates the user's stats
func (s *Service) SubmitReview(ctx context.Context, userID int64, itemID string, grade int) (*Outcome, error) {
	g := sr.Grade(grade)
	if err := g.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	log := s.log.With("user_id", userID)
	var out Outcome

	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		items := database.NewReviewItemRepository(tx)

		item, err := items.GetByID(ctx, itemID)
		if err != nil {
			return err
		}
		if item.UserID != userID {
			return errors.Wrapf(database.ErrNotFound, "review item %s", itemID)
		}

		prev := stateOf(item)
		next, err := sr.NextChecked(prev, g)
		if err != nil {
			return errors.Wrapf(err, "review item %s", itemID)
		}

		reviewedAt := now
		item.SRSLevel = next.Repetition
		item.EaseFactor = next.EaseFactor
		item.IntervalDays = next.Interval
		item.LastReviewedAt = &reviewedAt
		item.NextReviewAt = sr.NextReviewDate(now, next.Interval)
		if err := items.UpdateSchedule(ctx, item); err != nil {
			return err
		}

		xp := XPForGrade(g)
		stats, err := s.recordActivity(ctx, tx, userID, xp, now, true)
		if err != nil {
			return err
		}

		out = Outcome{
			Item:         *item,
			State:        next,
			NextReviewAt: item.NextReviewAt,
			XPGained:     xp,
			Stats:        *stats,
			Mastered:     sr.IsMastered(next) && !sr.IsMastered(prev),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug("review submitted",
		"item_id", itemID,
		"grade", grade,
		"interval", out.State.Interval,
		"repetition", out.State.Repetition,
		"ease_factor", out.State.EaseFactor,
	)
	return &out, nil
}

// SaveMistake puts a question into the review queue. A question already in
// the topic is reset to a fresh schedule instead of duplicated.
func (s *Service) SaveMistake(ctx context.Context, userID int64, subject, topic string, question models.Question, tags []string) (*models.ReviewItem, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, errors.Wrap(ErrInvalidInput, "topic is required")
	}
	if question.Text() == "" {
		return nil, errors.Wrap(ErrInvalidInput, "question text is required")
	}
	if subject == "" {
		subject = models.DefaultSubject
	}

	now := s.now()
	var saved models.ReviewItem

	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		items := database.NewReviewItemRepository(tx)

		existing, err := items.ListByTopic(ctx, userID, topic)
		if err != nil {
			return err
		}

		initial := sr.NewState()
		reviewedAt := now

		var item *models.ReviewItem
		for i := range existing {
			if existing[i].Question.Text() == question.Text() {
				item = &existing[i]
				break
			}
		}

		if item != nil {
			item.Subject = subject
			item.SRSLevel = initial.Repetition
			item.EaseFactor = initial.EaseFactor
			item.IntervalDays = initial.Interval
			item.NextReviewAt = now
			item.LastReviewedAt = &reviewedAt
			item.Tags = models.Tags(tags).Merge(item.Tags)
			if err := items.Update(ctx, item); err != nil {
				return err
			}
		} else {
			item = &models.ReviewItem{
				UserID:       userID,
				Subject:      subject,
				Topic:        topic,
				Question:     question,
				SRSLevel:     initial.Repetition,
				EaseFactor:   initial.EaseFactor,
				IntervalDays: initial.Interval,
				NextReviewAt: now,
				CreatedAt:    now,
				Tags:         models.Tags(tags).Merge(nil),
			}
			if err := items.Create(ctx, item); err != nil {
				return err
			}
		}

		if _, err := s.recordActivity(ctx, tx, userID, MistakeXP, now, false); err != nil {
			return err
		}
		saved = *item
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.With("user_id", userID).Debug("mistake saved", "item_id", saved.ID, "topic", topic)
	return &saved, nil
}

// Stats returns the user's learning statistics, zero valued when none exist
func (s *Service) Stats(ctx context.Context, userID int64) (*models.LearningStats, error) {
	stats, err := database.NewLearningStatsRepository(s.db).Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = &models.LearningStats{UserID: userID}
	}
	return stats, nil
}

// Library lists the user's items of subject whose topic contains search,
// newest first
func (s *Service) Library(ctx context.Context, userID int64, subject, search string) ([]models.ReviewItem, error) {
	if subject == "" {
		subject = models.DefaultSubject
	}
	return database.NewReviewItemRepository(s.db).Search(ctx, userID, subject, strings.TrimSpace(search))
}

// DeleteItem removes one of the user's items. Items of other users are
// reported as not found.
func (s *Service) DeleteItem(ctx context.Context, userID int64, itemID string) error {
	if err := database.NewReviewItemRepository(s.db).DeleteByID(ctx, userID, itemID); err != nil {
		return err
	}
	s.log.With("user_id", userID).Info("review item deleted", "item_id", itemID)
	return nil
}

// Activity returns the user's per-day counts of added and reviewed items
func (s *Service) Activity(ctx context.Context, userID int64) ([]models.ActivityDay, error) {
	rows, err := database.NewReviewItemRepository(s.db).Activity(ctx, userID)
	if err != nil {
		return nil, err
	}
	return AggregateActivity(rows), nil
}

// recordActivity adds xp, advances the streak and optionally recounts
// mastered items
func (s *Service) recordActivity(ctx context.Context, tx *sqlx.Tx, userID int64, xp int, now time.Time, recountMastered bool) (*models.LearningStats, error) {
	statsRepo := database.NewLearningStatsRepository(tx)

	stats, err := statsRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = &models.LearningStats{UserID: userID}
	}

	stats.TotalXP += xp
	stats.CurrentStreak = NextStreak(stats.CurrentStreak, stats.LastActivityDate, now)
	stats.LastActivityDate = ActivityDate(now)

	if recountMastered {
		mastered, err := database.NewReviewItemRepository(tx).CountMastered(ctx, userID, sr.MasteredRepetition)
		if err != nil {
			return nil, err
		}
		stats.ItemsMastered = mastered
	}

	if err := statsRepo.Upsert(ctx, stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func stateOf(item *models.ReviewItem) sr.State {
	return sr.State{
		Interval:   item.IntervalDays,
		Repetition: item.SRSLevel,
		EaseFactor: item.EaseFactor,
	}
}
