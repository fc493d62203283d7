package model

import "time"

// Reminder is a one-shot notification scheduled for a user. Reminders are
// kept in insertion order (ID order) and removed once delivered.
type Reminder struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    string    `gorm:"index;size:64;not null"`
	Title     string    `gorm:"type:text;not null"`
	RemindAt  time.Time `gorm:"index;not null"`
	Fired     bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
