package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/inquizitive/internal/database"
	"github.com/example/inquizitive/pkg/logger"
)

// Notifier interface for sending notifications
type Notifier interface {
	SendReminders(ctx context.Context, userID int64, count int) error
}

// Window is the inclusive range of hours reminders may go out in
type Window struct {
	StartHour int
	EndHour   int
}

// Contains reports whether hour falls inside the window
func (w Window) Contains(hour int) bool {
	return hour >= w.StartHour && hour <= w.EndHour
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	db        *sqlx.DB
	notifier  Notifier
	window    Window
	log       *logger.Logger
	now       func() time.Time
}

// New creates a new scheduler instance
func New(db *sqlx.DB, notifier Notifier, window Window, log *logger.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		db:        db,
		notifier:  notifier,
		window:    window,
		log:       log,
		now:       time.Now,
	}
}

// Start begins running all scheduled tasks. Jobs stop when ctx is done or
// Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	// Hourly check for users with due reviews
	if _, err := s.scheduler.Every(1).Hour().Do(s.checkAndSendReminders, ctx); err != nil {
		return errors.Wrap(err, "failed to schedule reminders")
	}

	// Start the scheduler in a non-blocking manner
	s.scheduler.StartAsync()
	s.log.Info("reminder scheduler started", "start_hour", s.window.StartHour, "end_hour", s.window.EndHour)
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	s.log.Info("reminder scheduler stopped")
}

// checkAndSendReminders notifies every user that has due items
func (s *Scheduler) checkAndSendReminders(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	now := s.now().UTC()
	if !s.window.Contains(now.Hour()) {
		s.log.Debug("outside notification hours, skipping reminders",
			"hour", now.Hour(), "start_hour", s.window.StartHour, "end_hour", s.window.EndHour)
		return
	}

	counts, err := database.NewReviewItemRepository(s.db).DueCounts(ctx, now)
	if err != nil {
		s.log.Error("failed to get due counts", "error", err)
		return
	}

	for _, c := range counts {
		if err := s.notifier.SendReminders(ctx, c.UserID, c.Count); err != nil {
			s.log.Warn("failed to send reminder", "user_id", c.UserID, "error", err)
		}
	}
}

// RunManualCheck forces a check for a specific user, ignoring the
// notification window. It returns how many items are due.
func (s *Scheduler) RunManualCheck(ctx context.Context, userID int64) (int, error) {
	count, err := database.NewReviewItemRepository(s.db).CountDue(ctx, userID, s.now())
	if err != nil {
		return 0, err
	}

	if count > 0 {
		if err := s.notifier.SendReminders(ctx, userID, count); err != nil {
			return count, err
		}
	}
	return count, nil
}
