package model

import "time"

// Priority ranks a task from 1 (normal) to 3 (urgent).
type Priority int

const (
	PriorityNormal    Priority = 1
	PriorityImportant Priority = 2
	PriorityUrgent    Priority = 3
)

// Label returns a short marker for list rendering.
func (p Priority) Label() string {
	switch p {
	case PriorityUrgent:
		return "URGENT"
	case PriorityImportant:
		return "important"
	default:
		return ""
	}
}

// Task is a to-do item for the current day. Tasks are never hard-deleted;
// completion sets Done and CompletedAt.
type Task struct {
	ID          uint      `gorm:"primaryKey"`
	UserID      string    `gorm:"index;size:64;not null"`
	Title       string    `gorm:"type:text;not null"`
	Priority    Priority  `gorm:"not null"`
	Notes       string    `gorm:"type:text"`
	Done        bool      `gorm:"index;not null"`
	CompletedAt *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}
