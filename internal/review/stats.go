package review

import (
	"math"
	"sort"
	"time"

	"github.com/example/inquizitive/internal/database"
	sr "github.com/example/inquizitive/internal/spaced_repetition"
	"github.com/example/inquizitive/pkg/models"
)

const (
	// MistakeXP is awarded for adding a question to the review vault
	MistakeXP = 5

	dateLayout = "2006-01-02"
)

// XPForGrade returns the experience awarded for one review
func XPForGrade(grade sr.Grade) int {
	switch {
	case grade >= sr.GradeCorrectHesitation:
		return 15
	case grade == sr.GradeCorrectDifficult:
		return 10
	default:
		return 5
	}
}

// ActivityDate is the UTC calendar day used for streak bookkeeping
func ActivityDate(now time.Time) string {
	return now.UTC().Format(dateLayout)
}

// NextStreak advances a daily streak. Activity on the same or the next day
// keeps the streak alive (growing it once per day); a longer gap restarts it.
func NextStreak(current int, lastActivity string, now time.Time) int {
	if lastActivity == "" {
		return 1
	}
	last, err := time.Parse(dateLayout, lastActivity)
	if err != nil {
		return 1
	}

	days := math.Floor(now.UTC().Sub(last).Hours() / 24)
	if days > 1 {
		return 1
	}
	if lastActivity == ActivityDate(now) {
		return current
	}
	return current + 1
}

// AggregateActivity counts, per UTC day, how many items were created and how
// many were last reviewed. Days come out in ascending order.
func AggregateActivity(rows []database.ItemActivity) []models.ActivityDay {
	counts := make(map[string]int)
	for _, r := range rows {
		if !r.CreatedAt.IsZero() {
			counts[ActivityDate(r.CreatedAt)]++
		}
		if r.LastReviewedAt != nil {
			counts[ActivityDate(*r.LastReviewedAt)]++
		}
	}

	days := make([]models.ActivityDay, 0, len(counts))
	for date, n := range counts {
		days = append(days, models.ActivityDay{Date: date, Count: n})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days
}
