package bot

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/inquizitive/internal/review"
	sr "github.com/example/inquizitive/internal/spaced_repetition"
	"github.com/example/inquizitive/pkg/models"
)

func TestParseCallback(t *testing.T) {
	cb, err := parseCallback(showCallbackData("abc"))
	require.NoError(t, err)
	assert.Equal(t, callback{action: actionShow, itemID: "abc"}, cb)

	cb, err = parseCallback(gradeCallbackData("abc", sr.GradeCorrectHesitation))
	require.NoError(t, err)
	assert.Equal(t, callback{action: actionGrade, itemID: "abc", grade: sr.GradeCorrectHesitation}, cb)

	for _, data := range []string{"", "show:", "grade:abc", "grade:abc:x", "grade::3", "delete:abc", "show:a:b"} {
		_, err := parseCallback(data)
		assert.Error(t, err, data)
	}

	_, err = parseCallback("grade:abc:6")
	assert.ErrorIs(t, err, sr.ErrInvalidGrade)
}

func TestParseAddArgs(t *testing.T) {
	topic, q, err := parseAddArgs(" cells | What is ATP? | energy currency ")
	require.NoError(t, err)
	assert.Equal(t, "cells", topic)
	assert.Equal(t, models.Question{Q: "What is ATP?", Answer: "energy currency", Type: models.OpenEnded}, q)

	_, q, err = parseAddArgs("cells | What is ATP? | energy | made in mitochondria")
	require.NoError(t, err)
	assert.Equal(t, "made in mitochondria", q.Explanation)

	for _, args := range []string{"", "cells | q", "cells | | a", "a|b|c|d|e"} {
		_, _, err := parseAddArgs(args)
		assert.Error(t, err, args)
	}
}

func TestFormatQuestion(t *testing.T) {
	item := models.ReviewItem{
		Subject:  "Geography",
		Topic:    "capitals",
		Question: models.Question{Q: "Capital of France?", Options: []string{"Paris", "Lyon"}},
	}
	text := formatQuestion(item, 3)
	assert.Contains(t, text, "Geography · capitals (3 left)")
	assert.Contains(t, text, "Capital of France?")
	assert.Contains(t, text, "\nA) Paris\nB) Lyon")
}

func TestFormatAnswer(t *testing.T) {
	item := models.ReviewItem{Question: models.Question{Answer: "Paris"}}
	assert.NotContains(t, formatAnswer(item), "💡")

	item.Question.Explanation = "On the Seine"
	assert.Contains(t, formatAnswer(item), "💡 On the Seine")
}

func TestFormatInterval(t *testing.T) {
	assert.Equal(t, "tomorrow", formatInterval(1))
	assert.Equal(t, "in 6 days", formatInterval(6))
}

func TestFormatOutcome(t *testing.T) {
	out := &review.Outcome{
		State:    sr.State{Interval: 6, Repetition: 2, EaseFactor: 2.5},
		XPGained: 15,
		Stats:    models.LearningStats{TotalXP: 40, CurrentStreak: 2},
	}
	assert.Equal(t, "Next review in 6 days. +15 XP (total 40, streak 2)", formatOutcome(out))

	out.Mastered = true
	assert.Contains(t, formatOutcome(out), "\n🏆 Mastered!")
}

func TestFormatActivity(t *testing.T) {
	today := time.Date(2026, 10, 19, 22, 0, 0, 0, time.UTC)
	days := []models.ActivityDay{
		{Date: "2026-09-01", Count: 3},
		{Date: "2026-10-13", Count: 1},
		{Date: "2026-10-19", Count: 14},
	}
	want := "🗓 Active days: 3\nLast 7 days:" +
		"\nTue 13 1 ■" +
		"\nWed 14 0\nThu 15 0\nFri 16 0\nSat 17 0\nSun 18 0" +
		"\nMon 19 14 ■■■■■■■■■■"
	assert.Equal(t, want, formatActivity(days, today))
}

func TestFormatLibrary(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	items := []models.ReviewItem{
		{ID: "a1", Topic: "cells", Question: models.Question{Q: "What is ATP?"}, SRSLevel: 2, NextReviewAt: now.AddDate(0, 0, 6)},
		{ID: "b2", Topic: "cells", Question: models.Question{Q: "What is a ribosome?"}, NextReviewAt: now},
	}
	text := formatLibrary("Biology", "", items, now)
	assert.Contains(t, text, "📚 Biology library (2)")
	assert.Contains(t, text, "cells: What is ATP?\nlevel 2 · due 2026-10-25\n/delete a1")
	assert.Contains(t, text, "level 0 · due now\n/delete b2")

	many := make([]models.ReviewItem, libraryPageSize+3)
	text = formatLibrary("Biology", "", many, now)
	assert.Contains(t, text, "…and 3 more.")
	assert.Equal(t, libraryPageSize, strings.Count(text, "/delete"))
}

func TestReminderText(t *testing.T) {
	assert.Contains(t, reminderText(1), "1 question due")
	assert.Contains(t, reminderText(4), "4 questions due")
}

func TestGradeKeyboard(t *testing.T) {
	kb := gradeKeyboard("abc")
	require.Len(t, kb.InlineKeyboard, 2)

	var data []string
	for _, row := range kb.InlineKeyboard {
		require.Len(t, row, 3)
		for _, btn := range row {
			require.NotNil(t, btn.CallbackData)
			data = append(data, *btn.CallbackData)
		}
	}
	assert.Equal(t, []string{
		"grade:abc:0", "grade:abc:1", "grade:abc:2",
		"grade:abc:3", "grade:abc:4", "grade:abc:5",
	}, data)
}
