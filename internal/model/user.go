package model

import "time"

// SchemaVersion is the version stamped on users written by this build.
const SchemaVersion = 2

// User is the per-user record owning tasks, reminders, moods and history.
type User struct {
	ID              string `gorm:"primaryKey;size:64"`
	SchemaVersion   int    `gorm:"not null"`
	LastAddedTaskID *uint
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`

	Tasks     []Task         `gorm:"foreignKey:UserID"`
	Reminders []Reminder     `gorm:"foreignKey:UserID"`
	Moods     []Mood         `gorm:"foreignKey:UserID"`
	History   []HistoryEntry `gorm:"foreignKey:UserID"`
}

// Mood is an emotional reading attached to a message, as reported by the
// classifier. Score ranges from -1 (negative) to 1 (positive).
type Mood struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    string    `gorm:"index;size:64;not null"`
	Score     float64   `gorm:"not null"`
	Text      string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Bucket maps a mood score to positive, neutral or negative.
func Bucket(score float64) string {
	switch {
	case score >= 0.25:
		return "positive"
	case score <= -0.25:
		return "negative"
	default:
		return "neutral"
	}
}

// History kinds.
const (
	HistoryTaskAdd          = "task_add"
	HistoryMultipleTasksAdd = "multiple_tasks_add"
	HistoryTaskDone         = "task_done"
	HistoryMarkAllDone      = "mark_all_done"
	HistoryReminderAdd      = "reminder_add"
	HistoryRemindersAdd     = "multiple_reminders_add"
	HistoryReminderMove     = "reminder_reschedule"
	HistoryReminderDelete   = "reminder_delete"
	HistoryMessage          = "message"
)

// HistoryEntry records one interaction. Recent entries are fed back to the
// intent classifier as context.
type HistoryEntry struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    string    `gorm:"index;size:64;not null"`
	Kind      string    `gorm:"size:32;not null"`
	Raw       string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
