package models

import "time"

// LearningStats aggregates a user's gamification counters
type LearningStats struct {
	UserID           int64     `json:"-" db:"user_id"`
	TotalXP          int       `json:"total_xp" db:"total_xp"`
	CurrentStreak    int       `json:"current_streak" db:"current_streak"`
	LastActivityDate string    `json:"last_activity_date" db:"last_activity_date"` // YYYY-MM-DD, UTC
	ItemsMastered    int       `json:"items_mastered" db:"items_mastered"`
	UpdatedAt        time.Time `json:"-" db:"updated_at"`
}

// ActivityDay counts items added or reviewed on one UTC day
type ActivityDay struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int    `json:"count"`
}
