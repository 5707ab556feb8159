package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"

	"github.com/example/inquizitive/internal/database"
	"github.com/example/inquizitive/internal/review"
	sr "github.com/example/inquizitive/internal/spaced_repetition"
	"github.com/example/inquizitive/pkg/models"
)

// handleUpdate handles incoming updates from Telegram
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	var err error
	switch {
	case update.Message != nil && update.Message.IsCommand():
		err = b.HandleCommand(ctx, update.Message)
	case update.Message != nil:
		err = b.send(tgbotapi.NewMessage(update.Message.Chat.ID, "I don't understand. Use /help to see the commands."))
	case update.CallbackQuery != nil:
		err = b.HandleCallback(ctx, update.CallbackQuery)
	}
	if err != nil {
		b.log.Error("failed to handle update", "update_id", update.UpdateID, "error", err)
	}
}

// HandleCommand routes a slash command
func (b *Bot) HandleCommand(ctx context.Context, message *tgbotapi.Message) error {
	if message.From == nil {
		return errors.New("command without sender")
	}

	switch message.Command() {
	case "start", "help":
		return b.send(tgbotapi.NewMessage(message.Chat.ID, helpText))
	case "review":
		return b.handleReview(ctx, message)
	case "add":
		return b.handleAdd(ctx, message)
	case "stats":
		return b.handleStats(ctx, message)
	case "workspaces":
		return b.handleWorkspaces(ctx, message)
	case "workspace":
		return b.handleWorkspace(ctx, message)
	case "library":
		return b.handleLibrary(ctx, message)
	case "delete":
		return b.handleDelete(ctx, message)
	case "remind":
		return b.handleRemind(ctx, message)
	default:
		return b.send(tgbotapi.NewMessage(message.Chat.ID, "Unknown command. Use /help to see the commands."))
	}
}

func (b *Bot) handleReview(ctx context.Context, message *tgbotapi.Message) error {
	userID := message.From.ID
	subject := strings.TrimSpace(message.CommandArguments())
	if subject == "" {
		subject = b.subject(userID)
	}

	items, err := b.reviews.GetDueReviews(ctx, userID, subject)
	if err != nil {
		return b.fail(message.Chat.ID, err)
	}
	if len(items) == 0 {
		return b.send(tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf("🎉 Nothing to review in %s right now.", subject)))
	}

	b.startSession(userID, subject, items)
	return b.sendNextQuestion(message.Chat.ID, userID)
}

func (b *Bot) handleAdd(ctx context.Context, message *tgbotapi.Message) error {
	topic, question, err := parseAddArgs(message.CommandArguments())
	if err != nil {
		return b.send(tgbotapi.NewMessage(message.Chat.ID, err.Error()))
	}

	userID := message.From.ID
	item, err := b.reviews.SaveMistake(ctx, userID, b.subject(userID), topic, question, nil)
	if err != nil {
		return b.fail(message.Chat.ID, err)
	}
	return b.send(tgbotapi.NewMessage(message.Chat.ID,
		fmt.Sprintf("📝 Saved to %s · %s. It is due for review now. +%d XP", item.Subject, item.Topic, review.MistakeXP)))
}

func (b *Bot) handleStats(ctx context.Context, message *tgbotapi.Message) error {
	stats, err := b.reviews.Stats(ctx, message.From.ID)
	if err != nil {
		return b.fail(message.Chat.ID, err)
	}
	activity, err := b.reviews.Activity(ctx, message.From.ID)
	if err != nil {
		return b.fail(message.Chat.ID, err)
	}
	return b.send(tgbotapi.NewMessage(message.Chat.ID, formatStats(stats)+"\n\n"+formatActivity(activity, b.now())))
}

func (b *Bot) handleLibrary(ctx context.Context, message *tgbotapi.Message) error {
	userID := message.From.ID
	subject := b.subject(userID)
	search := strings.TrimSpace(message.CommandArguments())

	items, err := b.reviews.Library(ctx, userID, subject, search)
	if err != nil {
		return b.fail(message.Chat.ID, err)
	}
	return b.send(tgbotapi.NewMessage(message.Chat.ID, formatLibrary(subject, search, items, b.now())))
}

func (b *Bot) handleDelete(ctx context.Context, message *tgbotapi.Message) error {
	itemID := strings.TrimSpace(message.CommandArguments())
	if itemID == "" {
		return b.send(tgbotapi.NewMessage(message.Chat.ID, "usage: /delete <id> (ids are listed by /library)"))
	}

	userID := message.From.ID
	if err := b.reviews.DeleteItem(ctx, userID, itemID); err != nil {
		return b.fail(message.Chat.ID, err)
	}
	b.dropQueued(userID, itemID)
	return b.send(tgbotapi.NewMessage(message.Chat.ID, "🗑 Deleted."))
}

func (b *Bot) handleRemind(ctx context.Context, message *tgbotapi.Message) error {
	if b.reminders == nil {
		return b.send(tgbotapi.NewMessage(message.Chat.ID, "Reminders are not enabled."))
	}

	count, err := b.reminders.RunManualCheck(ctx, message.From.ID)
	if err != nil {
		return b.fail(message.Chat.ID, err)
	}
	if count == 0 {
		return b.send(tgbotapi.NewMessage(message.Chat.ID, "🎉 Nothing is due right now."))
	}
	return nil
}

func (b *Bot) handleWorkspaces(ctx context.Context, message *tgbotapi.Message) error {
	userID := message.From.ID
	workspaces, err := database.NewWorkspaceRepository(b.db).List(ctx, userID)
	if err != nil {
		return b.fail(message.Chat.ID, err)
	}

	current := b.subject(userID)
	var text strings.Builder
	text.WriteString("🗂 Your subjects:\n")
	names := []string{models.DefaultSubject}
	for _, w := range workspaces {
		if w.Name != models.DefaultSubject {
			names = append(names, w.Name)
		}
	}
	for _, name := range names {
		marker := "  "
		if name == current {
			marker = "▶ "
		}
		text.WriteString("\n" + marker + name)
	}
	return b.send(tgbotapi.NewMessage(message.Chat.ID, text.String()))
}

func (b *Bot) handleWorkspace(ctx context.Context, message *tgbotapi.Message) error {
	name := strings.TrimSpace(message.CommandArguments())
	if name == "" {
		return b.send(tgbotapi.NewMessage(message.Chat.ID, "usage: /workspace <name>"))
	}

	userID := message.From.ID
	if name != models.DefaultSubject {
		if _, err := database.NewWorkspaceRepository(b.db).Create(ctx, userID, name); err != nil {
			return b.fail(message.Chat.ID, err)
		}
	}
	b.setSubject(userID, name)
	return b.send(tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf("Switched to %s.", name)))
}

// HandleCallback handles inline button presses
func (b *Bot) HandleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query == nil || query.Message == nil || query.From == nil {
		return errors.New("invalid callback data: required fields are missing")
	}

	// Always answer the callback query to remove the loading state
	if _, err := b.client.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.log.Warn("failed to answer callback", "error", err)
	}

	chatID := query.Message.Chat.ID
	cb, err := parseCallback(query.Data)
	if err != nil {
		return b.send(tgbotapi.NewMessage(chatID, "⚠️ Unknown action"))
	}

	// Only the question at the head of the session can be answered
	userID := query.From.ID
	switch cb.action {
	case actionShow:
		item, _, ok := b.current(userID)
		if !ok || item.ID != cb.itemID {
			return b.send(tgbotapi.NewMessage(chatID, notInSessionText))
		}
		msg := tgbotapi.NewMessage(chatID, formatAnswer(item))
		msg.ReplyMarkup = gradeKeyboard(item.ID)
		return b.send(msg)

	case actionGrade:
		item, ok := b.claim(userID, cb.itemID)
		if !ok {
			return b.send(tgbotapi.NewMessage(chatID, notInSessionText))
		}
		out, err := b.reviews.SubmitReview(ctx, userID, cb.itemID, int(cb.grade))
		if err != nil {
			if retryable(err) {
				b.requeue(userID, item)
			}
			return b.fail(chatID, err)
		}
		if err := b.send(tgbotapi.NewMessage(chatID, formatOutcome(out))); err != nil {
			return err
		}
		return b.sendNextQuestion(chatID, userID)
	}
	return nil
}

// retryable reports whether a failed review can be attempted again
func retryable(err error) bool {
	return !errors.Is(err, database.ErrNotFound) &&
		!errors.Is(err, database.ErrConcurrentUpdate) &&
		!errors.Is(err, sr.ErrInvalidState)
}

func (b *Bot) sendNextQuestion(chatID, userID int64) error {
	item, remaining, ok := b.current(userID)
	if !ok {
		return b.send(tgbotapi.NewMessage(chatID, "🏁 Session complete. See /stats for your progress."))
	}

	msg := tgbotapi.NewMessage(chatID, formatQuestion(item, remaining))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("👀 Show answer", showCallbackData(item.ID))),
	)
	return b.send(msg)
}

func gradeKeyboard(itemID string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for start := sr.GradeBlackout; start <= sr.GradePerfect; start += 3 {
		var row []tgbotapi.InlineKeyboardButton
		for g := start; g < start+3; g++ {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(gradeLabels[g], gradeCallbackData(itemID, g)))
		}
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// fail logs err and tells the user something went wrong
func (b *Bot) fail(chatID int64, err error) error {
	text := "❌ Something went wrong. Please try again later."
	switch {
	case errors.Is(err, database.ErrNotFound):
		text = "That question no longer exists."
	case errors.Is(err, database.ErrConcurrentUpdate):
		text = "That question was just reviewed elsewhere. Send /review to continue."
	case errors.Is(err, sr.ErrInvalidState):
		text = "That question has a broken schedule and was left untouched."
	}
	b.log.Error("request failed", "chat_id", chatID, "error", err)
	return b.send(tgbotapi.NewMessage(chatID, text))
}
