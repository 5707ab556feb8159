package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/example/inquizitive/internal/review"
	sr "github.com/example/inquizitive/internal/spaced_repetition"
	"github.com/example/inquizitive/pkg/models"
)

// Constants for callback data
const (
	actionShow  = "show"
	actionGrade = "grade"
)

var gradeLabels = map[sr.Grade]string{
	sr.GradeBlackout:          "0 Blank",
	sr.GradeIncorrect:         "1 Wrong",
	sr.GradeIncorrectFamiliar: "2 Almost",
	sr.GradeCorrectDifficult:  "3 Hard",
	sr.GradeCorrectHesitation: "4 Good",
	sr.GradePerfect:           "5 Easy",
}

const helpText = `Inquizitive keeps your mistakes coming back until they stick.

Commands:
/review [subject] - review the questions that are due
/add topic | question | answer [| explanation] - add a question
/stats - your XP, streak and mastered items
/workspaces - list your subjects
/workspace <name> - create a subject and switch to it
/library [search] - browse questions of the current subject by topic
/delete <id> - remove a question from your library
/remind - check for due questions now
/help - show this message`

const notInSessionText = "This question is no longer in your session. Send /review to start again."

// libraryPageSize caps how many items one /library reply lists
const libraryPageSize = 20

// callback describes a parsed inline button press
type callback struct {
	action string
	itemID string
	grade  sr.Grade
}

func showCallbackData(itemID string) string {
	return actionShow + ":" + itemID
}

func gradeCallbackData(itemID string, g sr.Grade) string {
	return fmt.Sprintf("%s:%s:%d", actionGrade, itemID, int(g))
}

// parseCallback decodes "show:<id>" and "grade:<id>:<0-5>"
func parseCallback(data string) (callback, error) {
	parts := strings.Split(data, ":")
	switch {
	case len(parts) == 2 && parts[0] == actionShow && parts[1] != "":
		return callback{action: actionShow, itemID: parts[1]}, nil
	case len(parts) == 3 && parts[0] == actionGrade && parts[1] != "":
		g, err := strconv.Atoi(parts[2])
		if err != nil {
			return callback{}, errors.Wrapf(err, "invalid grade in callback %q", data)
		}
		grade := sr.Grade(g)
		if err := grade.Validate(); err != nil {
			return callback{}, err
		}
		return callback{action: actionGrade, itemID: parts[1], grade: grade}, nil
	}
	return callback{}, errors.Errorf("unknown callback %q", data)
}

// parseAddArgs splits "topic | question | answer [| explanation]"
func parseAddArgs(args string) (string, models.Question, error) {
	parts := strings.Split(args, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 3 || len(parts) > 4 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", models.Question{}, errors.New("usage: /add topic | question | answer [| explanation]")
	}

	q := models.Question{Q: parts[1], Answer: parts[2], Type: models.OpenEnded}
	if len(parts) == 4 {
		q.Explanation = parts[3]
	}
	return parts[0], q, nil
}

func formatQuestion(item models.ReviewItem, remaining int) string {
	var text strings.Builder
	text.WriteString(fmt.Sprintf("📚 %s · %s (%d left)\n\n", item.Subject, item.Topic, remaining))
	text.WriteString("❓ " + item.Question.Q)
	if item.Question.Kind() == models.MultipleChoice {
		for i, opt := range item.Question.Options {
			text.WriteString(fmt.Sprintf("\n%c) %s", 'A'+i, opt))
		}
	}
	return text.String()
}

func formatAnswer(item models.ReviewItem) string {
	text := "✅ " + item.Question.Answer
	if item.Question.Explanation != "" {
		text += "\n\n💡 " + item.Question.Explanation
	}
	return text + "\n\nHow well did you remember it?"
}

func formatInterval(days int) string {
	if days == 1 {
		return "tomorrow"
	}
	return fmt.Sprintf("in %d days", days)
}

func formatOutcome(out *review.Outcome) string {
	text := fmt.Sprintf("Next review %s. +%d XP (total %d, streak %d)",
		formatInterval(out.State.Interval), out.XPGained, out.Stats.TotalXP, out.Stats.CurrentStreak)
	if out.Mastered {
		text += "\n🏆 Mastered! This one now comes back only now and then."
	}
	return text
}

func formatStats(stats *models.LearningStats) string {
	return fmt.Sprintf("📊 Your progress\n\nXP: %d\nStreak: %d day(s)\nMastered items: %d",
		stats.TotalXP, stats.CurrentStreak, stats.ItemsMastered)
}

func reminderText(count int) string {
	noun := "questions"
	if count == 1 {
		noun = "question"
	}
	return fmt.Sprintf("🔔 You have %d %s due for review. Send /review to start.", count, noun)
}

// formatActivity renders the last seven UTC days ending today
func formatActivity(days []models.ActivityDay, today time.Time) string {
	counts := make(map[string]int, len(days))
	for _, d := range days {
		counts[d.Date] = d.Count
	}

	var text strings.Builder
	text.WriteString(fmt.Sprintf("🗓 Active days: %d\nLast 7 days:", len(days)))
	for i := 6; i >= 0; i-- {
		day := today.UTC().AddDate(0, 0, -i)
		n := counts[day.Format("2006-01-02")]
		line := fmt.Sprintf("\n%s %d", day.Format("Mon 02"), n)
		if n > 0 {
			line += " " + strings.Repeat("■", min(n, 10))
		}
		text.WriteString(line)
	}
	return text.String()
}

func formatLibrary(subject, search string, items []models.ReviewItem, now time.Time) string {
	if len(items) == 0 {
		if search != "" {
			return fmt.Sprintf("No topics in %s match %q.", subject, search)
		}
		return fmt.Sprintf("Your %s library is empty. Add questions with /add.", subject)
	}

	var text strings.Builder
	text.WriteString(fmt.Sprintf("📚 %s library (%d)", subject, len(items)))
	for i, item := range items {
		if i == libraryPageSize {
			text.WriteString(fmt.Sprintf("\n\n…and %d more. Narrow it down with /library <search>.", len(items)-i))
			break
		}
		due := "due now"
		if item.NextReviewAt.After(now) {
			due = "due " + item.NextReviewAt.UTC().Format("2006-01-02")
		}
		text.WriteString(fmt.Sprintf("\n\n%s: %s\nlevel %d · %s\n/delete %s",
			item.Topic, item.Question.Q, item.SRSLevel, due, item.ID))
	}
	return text.String()
}
