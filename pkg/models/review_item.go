package models

import "time"

// DefaultSubject is the workspace items fall into when none is given
const DefaultSubject = "General"

// ReviewItem is a question the user reviews on a spaced repetition schedule
type ReviewItem struct {
	ID             string     `json:"id" db:"id"`
	UserID         int64      `json:"user_id" db:"user_id"`
	Subject        string     `json:"subject" db:"subject"`
	Topic          string     `json:"topic" db:"topic"`
	Question       Question   `json:"question_json" db:"question_json"`
	SRSLevel       int        `json:"srs_level" db:"srs_level"`         // Consecutive successful reviews
	EaseFactor     float64    `json:"ease_factor" db:"ease_factor"`     // SM-2 EF parameter
	IntervalDays   int        `json:"interval_days" db:"interval_days"` // Current interval in days
	LastReviewedAt *time.Time `json:"last_reviewed_at" db:"last_reviewed_at"`
	NextReviewAt   time.Time  `json:"next_review_at" db:"next_review_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	Tags           Tags       `json:"tags" db:"tags"`
	Version        int        `json:"-" db:"version"`
}

// MatchKey identifies an item by topic and question text
func (i ReviewItem) MatchKey() string {
	return i.Topic + "::" + i.Question.Text()
}
