package bot

import (
	"context"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/inquizitive/internal/review"
	"github.com/example/inquizitive/pkg/logger"
	"github.com/example/inquizitive/pkg/models"
)

// ErrUpdatesClosed is returned by Start when Telegram stops delivering updates
// before the context is done
var ErrUpdatesClosed = errors.New("telegram updates channel closed")

// sender is the part of the Telegram API the bot talks to
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// reminderChecker forces a due-items reminder for one user
type reminderChecker interface {
	RunManualCheck(ctx context.Context, userID int64) (int, error)
}

// session is a user's ongoing review run
type session struct {
	Subject   string
	Queue     []models.ReviewItem
	UpdatedAt time.Time
}

// Bot represents the Telegram bot application
type Bot struct {
	api       *tgbotapi.BotAPI
	client    sender
	reviews   *review.Service
	reminders reminderChecker
	db        *sqlx.DB
	config    *BotConfig
	log       *logger.Logger
	now       func() time.Time
	handlers  sync.WaitGroup

	mu        sync.Mutex
	sessions  map[int64]*session
	lastSweep time.Time
}

// New authorizes against the Telegram API and creates a bot instance
func New(token string, reviews *review.Service, db *sqlx.DB, log *logger.Logger) (*Bot, error) {
	if token == "" {
		return nil, errors.New("telegram token is not set")
	}

	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create bot")
	}
	log.Info("authorized on telegram", "account", botAPI.Self.UserName)

	b := newBot(botAPI, reviews, db, log)
	b.api = botAPI
	return b, nil
}

func newBot(client sender, reviews *review.Service, db *sqlx.DB, log *logger.Logger) *Bot {
	return &Bot{
		client:   client,
		reviews:  reviews,
		db:       db,
		config:   DefaultConfig(),
		log:      log,
		now:      time.Now,
		sessions: make(map[int64]*session),
	}
}

// SetReminders enables the /remind command
func (b *Bot) SetReminders(r reminderChecker) {
	b.reminders = r
}

// Start handles incoming updates until ctx is done
func (b *Bot) Start(ctx context.Context) error {
	if b.api == nil {
		return errors.New("bot is not connected to telegram")
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.config.UpdateTimeout

	b.log.Info("bot started")
	return b.serve(ctx, b.api.GetUpdatesChan(updateConfig))
}

// serve dispatches updates to handler goroutines and waits for them to
// finish before returning
func (b *Bot) serve(ctx context.Context, updates tgbotapi.UpdatesChannel) error {
	defer b.handlers.Wait()

	for {
		select {
		case <-ctx.Done():
			b.Stop()
			return nil
		case update, ok := <-updates:
			if !ok {
				return ErrUpdatesClosed
			}
			b.handlers.Add(1)
			go func() {
				defer b.handlers.Done()
				b.handleUpdate(ctx, update)
			}()
		}
	}
}

// Stop stops receiving updates
func (b *Bot) Stop() {
	if b.api != nil {
		b.api.StopReceivingUpdates()
	}
	b.log.Info("bot stopped")
}

// SendReminders tells a user how many questions wait for review. In private
// chats the chat ID equals the user ID.
func (b *Bot) SendReminders(ctx context.Context, userID int64, count int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.send(tgbotapi.NewMessage(userID, reminderText(count))); err != nil {
		return errors.Wrapf(err, "send reminder to user %d", userID)
	}
	b.log.Debug("reminder sent", "user_id", userID, "count", count)
	return nil
}

func (b *Bot) send(c tgbotapi.Chattable) error {
	_, err := b.client.Send(c)
	return err
}

// sessionFor returns the user's live session, starting a fresh one when it
// is missing or idle for longer than SessionTTL. Idle sessions of all users
// are evicted once per TTL. Callers hold b.mu.
func (b *Bot) sessionFor(userID int64) *session {
	now := b.now()
	if now.Sub(b.lastSweep) > b.config.SessionTTL {
		for id, s := range b.sessions {
			if now.Sub(s.UpdatedAt) > b.config.SessionTTL {
				delete(b.sessions, id)
			}
		}
		b.lastSweep = now
	}

	s, ok := b.sessions[userID]
	if !ok || now.Sub(s.UpdatedAt) > b.config.SessionTTL {
		s = &session{Subject: models.DefaultSubject}
		b.sessions[userID] = s
	}
	s.UpdatedAt = now
	return s
}

func (b *Bot) subject(userID int64) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessionFor(userID).Subject
}

func (b *Bot) setSubject(userID int64, subject string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.sessionFor(userID)
	s.Subject = subject
	s.Queue = nil
}

func (b *Bot) startSession(userID int64, subject string, items []models.ReviewItem) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.sessionFor(userID)
	s.Subject = subject
	s.Queue = items
}

// current returns the item at the head of the user's queue
func (b *Bot) current(userID int64) (models.ReviewItem, int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.sessionFor(userID)
	if len(s.Queue) == 0 {
		return models.ReviewItem{}, 0, false
	}
	return s.Queue[0], len(s.Queue), true
}

// claim pops the head of the queue if it is itemID. A second press of the
// same grade button finds the item gone.
func (b *Bot) claim(userID int64, itemID string) (models.ReviewItem, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.sessionFor(userID)
	if len(s.Queue) == 0 || s.Queue[0].ID != itemID {
		return models.ReviewItem{}, false
	}
	item := s.Queue[0]
	s.Queue = s.Queue[1:]
	return item, true
}

// requeue puts a claimed item back at the head of the queue
func (b *Bot) requeue(userID int64, item models.ReviewItem) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.sessionFor(userID)
	s.Queue = append([]models.ReviewItem{item}, s.Queue...)
}

// dropQueued removes itemID from the queue wherever it is
func (b *Bot) dropQueued(userID int64, itemID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.sessionFor(userID)
	for i := range s.Queue {
		if s.Queue[i].ID == itemID {
			s.Queue = append(s.Queue[:i], s.Queue[i+1:]...)
			return
		}
	}
}
