package models

import "time"

// Workspace groups review items under a subject name
type Workspace struct {
	ID        string    `json:"-" db:"id"`
	UserID    int64     `json:"-" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"-" db:"created_at"`
}
