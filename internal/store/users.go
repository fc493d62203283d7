package store

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/pathakanu/myAgenda/internal/model"
	"gorm.io/gorm"
)

// maxMoodText caps the message excerpt stored next to a mood score.
const maxMoodText = 200

// Stats summarises a user's task activity.
type Stats struct {
	Total          int
	Completed      int
	Pending        int
	CompletedToday int
	UrgentPending  int
	ActiveDays     int // distinct days with at least one completion
}

// DaySummary is the material for an end-of-day reflection.
type DaySummary struct {
	CompletedToday int
	Pending        int
	// Mood is the bucket of the average mood recorded today, or empty.
	Mood string
}

// ImportedUser is one user record read from an external source.
// LastAddedIndex points into Tasks.
type ImportedUser struct {
	ID             string
	Tasks          []model.Task
	Reminders      []model.Reminder
	Moods          []model.Mood
	History        []model.HistoryEntry
	LastAddedIndex *int
}

// EnsureUser creates the user record if it does not exist yet.
func (s *Store) EnsureUser(ctx context.Context, userID string) error {
	return s.mutate(ctx, userID, func(*gorm.DB) error { return nil })
}

// AppendHistory records an interaction.
func (s *Store) AppendHistory(ctx context.Context, userID, kind, raw string) error {
	return s.mutate(ctx, userID, func(tx *gorm.DB) error {
		return appendHistory(tx, userID, kind, raw, s.Now())
	})
}

// RecentHistory returns up to limit of the newest entries, oldest first.
func (s *Store) RecentHistory(ctx context.Context, userID string, limit int) ([]model.HistoryEntry, error) {
	var entries []model.HistoryEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// RecordMood stores a mood reading for the message text.
func (s *Store) RecordMood(ctx context.Context, userID string, score float64, text string) error {
	if score < -1 {
		score = -1
	} else if score > 1 {
		score = 1
	}
	if utf8.RuneCountInString(text) > maxMoodText {
		text = string([]rune(text)[:maxMoodText])
	}
	return s.mutate(ctx, userID, func(tx *gorm.DB) error {
		return tx.Create(&model.Mood{
			UserID:    userID,
			Score:     score,
			Text:      text,
			CreatedAt: s.Now().UTC(),
		}).Error
	})
}

// Stats counts the user's tasks. "Today" is the current day in the store
// location.
func (s *Store) Stats(ctx context.Context, userID string) (Stats, error) {
	tasks, err := s.ListTasks(ctx, userID, ScopeAll)
	if err != nil {
		return Stats{}, err
	}
	now := s.Now()
	days := make(map[string]struct{})
	var st Stats
	for _, t := range tasks {
		st.Total++
		if !t.Done {
			st.Pending++
			if t.Priority == model.PriorityUrgent {
				st.UrgentPending++
			}
			continue
		}
		st.Completed++
		if t.CompletedAt != nil {
			days[t.CompletedAt.In(s.loc).Format(time.DateOnly)] = struct{}{}
			if sameDay(t.CompletedAt.In(s.loc), now) {
				st.CompletedToday++
			}
		}
	}
	st.ActiveDays = len(days)
	return st, nil
}

// DaySummary reports today's progress and mood.
func (s *Store) DaySummary(ctx context.Context, userID string) (DaySummary, error) {
	st, err := s.Stats(ctx, userID)
	if err != nil {
		return DaySummary{}, err
	}
	sum := DaySummary{CompletedToday: st.CompletedToday, Pending: st.Pending}

	now := s.Now()
	y, m, d := now.Date()
	startOfDay := time.Date(y, m, d, 0, 0, 0, 0, s.loc)

	var moods []model.Mood
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ?", userID, startOfDay.UTC()).
		Find(&moods).Error
	if err != nil {
		return DaySummary{}, err
	}
	var total float64
	var n int
	for _, md := range moods {
		if sameDay(md.CreatedAt.In(s.loc), now) {
			total += md.Score
			n++
		}
	}
	if n > 0 {
		sum.Mood = model.Bucket(total / float64(n))
	}
	return sum, nil
}

// Import writes users read from an external source in one transaction.
// Records of users that already exist are appended to.
func (s *Store) Import(ctx context.Context, users []ImportedUser) error {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range users {
			if u.ID == "" {
				return ErrNoUser
			}
			if err := ensureUser(tx, u.ID); err != nil {
				return err
			}
			if err := importUser(tx, u); err != nil {
				return err
			}
		}
		return nil
	})
}

func importUser(tx *gorm.DB, u ImportedUser) error {
	for i := range u.Tasks {
		u.Tasks[i].ID = 0
		u.Tasks[i].UserID = u.ID
	}
	for i := range u.Reminders {
		u.Reminders[i].ID = 0
		u.Reminders[i].UserID = u.ID
	}
	for i := range u.Moods {
		u.Moods[i].ID = 0
		u.Moods[i].UserID = u.ID
	}
	for i := range u.History {
		u.History[i].ID = 0
		u.History[i].UserID = u.ID
	}

	if len(u.Tasks) > 0 {
		if err := tx.Create(&u.Tasks).Error; err != nil {
			return err
		}
	}
	if len(u.Reminders) > 0 {
		if err := tx.Create(&u.Reminders).Error; err != nil {
			return err
		}
	}
	if len(u.Moods) > 0 {
		if err := tx.Create(&u.Moods).Error; err != nil {
			return err
		}
	}
	if len(u.History) > 0 {
		if err := tx.Create(&u.History).Error; err != nil {
			return err
		}
	}

	updates := map[string]any{"schema_version": model.SchemaVersion}
	if i := u.LastAddedIndex; i != nil && *i >= 0 && *i < len(u.Tasks) {
		updates["last_added_task_id"] = u.Tasks[*i].ID
	}
	return tx.Model(&model.User{}).Where("id = ?", u.ID).Updates(updates).Error
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
