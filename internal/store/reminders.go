package store

import (
	"context"
	"strings"
	"time"

	"github.com/pathakanu/myAgenda/internal/matcher"
	"github.com/pathakanu/myAgenda/internal/model"
	"gorm.io/gorm"
)

// defaultReminderTitle is used when the extracted title is empty.
const defaultReminderTitle = "Reminder"

// ReminderDraft is one reminder request before its time is resolved.
type ReminderDraft struct {
	Title string
	When  string
}

// AddReminder stores a reminder that fires at remindAt. The time must be
// strictly after the store clock.
func (s *Store) AddReminder(ctx context.Context, userID, title string, remindAt time.Time) (*model.Reminder, error) {
	now := s.Now()
	if !remindAt.After(now) {
		return nil, &PastTimeError{At: remindAt.In(s.loc)}
	}

	r := model.Reminder{
		UserID:    userID,
		Title:     reminderTitle(title),
		RemindAt:  remindAt.UTC(),
		CreatedAt: now.UTC(),
	}
	err := s.mutate(ctx, userID, func(tx *gorm.DB) error {
		if err := tx.Create(&r).Error; err != nil {
			return err
		}
		return appendHistory(tx, userID, model.HistoryReminderAdd, r.Title, now)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// AddReminderText resolves when against the store clock and stores the reminder.
func (s *Store) AddReminderText(ctx context.Context, userID, title, when string) (*model.Reminder, error) {
	at, ok := s.resolver.Resolve(when, s.Now())
	if !ok {
		return nil, ErrParseFailure
	}
	return s.AddReminder(ctx, userID, title, at)
}

// AddReminders resolves every draft independently. Drafts whose time cannot
// be resolved or is not in the future are returned by title in failed; the
// others are stored together.
func (s *Store) AddReminders(ctx context.Context, userID string, drafts []ReminderDraft) (added []model.Reminder, failed []string, err error) {
	now := s.Now()
	for _, d := range drafts {
		title := reminderTitle(d.Title)
		at, ok := s.resolver.Resolve(d.When, now)
		if !ok || !at.After(now) {
			failed = append(failed, title)
			continue
		}
		added = append(added, model.Reminder{
			UserID:    userID,
			Title:     title,
			RemindAt:  at.UTC(),
			CreatedAt: now.UTC(),
		})
	}
	if len(added) == 0 {
		return nil, failed, nil
	}

	err = s.mutate(ctx, userID, func(tx *gorm.DB) error {
		if err := tx.Create(&added).Error; err != nil {
			return err
		}
		titles := make([]string, len(added))
		for i, r := range added {
			titles[i] = r.Title
		}
		return appendHistory(tx, userID, model.HistoryRemindersAdd, strings.Join(titles, "; "), now)
	})
	if err != nil {
		return nil, nil, err
	}
	return added, failed, nil
}

// ListReminders returns the user's pending reminders in insertion order.
func (s *Store) ListReminders(ctx context.Context, userID string) ([]model.Reminder, error) {
	return listReminders(s.db.WithContext(ctx), userID)
}

func listReminders(tx *gorm.DB, userID string) ([]model.Reminder, error) {
	var reminders []model.Reminder
	err := tx.Where("user_id = ?", userID).Order("id ASC").Find(&reminders).Error
	return reminders, err
}

// DeleteReminderByIndex removes the reminder at the 1-based position.
func (s *Store) DeleteReminderByIndex(ctx context.Context, userID string, position int) (*model.Reminder, error) {
	var removed model.Reminder
	err := s.mutate(ctx, userID, func(tx *gorm.DB) error {
		reminders, err := listReminders(tx, userID)
		if err != nil {
			return err
		}
		if position < 1 || position > len(reminders) {
			return ErrIndexOutOfRange
		}
		removed = reminders[position-1]
		return deleteReminder(tx, removed, s.Now())
	})
	if err != nil {
		return nil, err
	}
	return &removed, nil
}

// DeleteReminderByText removes the one reminder whose title contains a
// significant token of query.
func (s *Store) DeleteReminderByText(ctx context.Context, userID, query string) (*model.Reminder, error) {
	var removed model.Reminder
	err := s.mutate(ctx, userID, func(tx *gorm.DB) error {
		reminders, err := listReminders(tx, userID)
		if err != nil {
			return err
		}
		res := matchReminders(reminders, query)
		switch res.Kind {
		case matcher.None:
			return ErrNotFound
		case matcher.Ambiguous:
			return ambiguous(reminders, res.Indices)
		}
		removed = reminders[res.Index()]
		return deleteReminder(tx, removed, s.Now())
	})
	if err != nil {
		return nil, err
	}
	return &removed, nil
}

// DeleteAllReminders removes every pending reminder and reports how many
// were removed.
func (s *Store) DeleteAllReminders(ctx context.Context, userID string) (int, error) {
	var removed int
	err := s.mutate(ctx, userID, func(tx *gorm.DB) error {
		res := tx.Where("user_id = ?", userID).Delete(&model.Reminder{})
		if res.Error != nil {
			return res.Error
		}
		removed = int(res.RowsAffected)
		if removed == 0 {
			return nil
		}
		return appendHistory(tx, userID, model.HistoryReminderDelete, "all", s.Now())
	})
	return removed, err
}

// RescheduleReminderByText resolves a new time from text and moves the
// reminder text refers to. When nothing matches, the most recently added
// reminder is moved instead.
func (s *Store) RescheduleReminderByText(ctx context.Context, userID, text string) (*model.Reminder, error) {
	at, err := s.futureTime(text)
	if err != nil {
		return nil, err
	}

	var moved model.Reminder
	err = s.mutate(ctx, userID, func(tx *gorm.DB) error {
		reminders, err := listReminders(tx, userID)
		if err != nil {
			return err
		}
		if len(reminders) == 0 {
			return ErrNotFound
		}
		res := matchReminders(reminders, text)
		idx := len(reminders) - 1
		switch res.Kind {
		case matcher.Ambiguous:
			return ambiguous(reminders, res.Indices)
		case matcher.Unique:
			idx = res.Index()
		}
		moved = reminders[idx]
		return moveReminder(tx, &moved, at, s.Now())
	})
	if err != nil {
		return nil, err
	}
	return &moved, nil
}

// RescheduleReminderByIndex moves the reminder at the 1-based position to
// the time resolved from when.
func (s *Store) RescheduleReminderByIndex(ctx context.Context, userID string, position int, when string) (*model.Reminder, error) {
	at, err := s.futureTime(when)
	if err != nil {
		return nil, err
	}

	var moved model.Reminder
	err = s.mutate(ctx, userID, func(tx *gorm.DB) error {
		reminders, err := listReminders(tx, userID)
		if err != nil {
			return err
		}
		if position < 1 || position > len(reminders) {
			return ErrIndexOutOfRange
		}
		moved = reminders[position-1]
		return moveReminder(tx, &moved, at, s.Now())
	})
	if err != nil {
		return nil, err
	}
	return &moved, nil
}

// DueSweep removes every reminder with RemindAt at or before now and returns
// them grouped by user, each group in insertion order. A reminder is
// returned by exactly one sweep; delivery failures do not put it back.
func (s *Store) DueSweep(ctx context.Context, now time.Time) (map[string][]model.Reminder, error) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	due := make(map[string][]model.Reminder)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reminders []model.Reminder
		if err := tx.Where("remind_at <= ?", now.UTC()).Order("id ASC").Find(&reminders).Error; err != nil {
			return err
		}
		if len(reminders) == 0 {
			return nil
		}
		ids := make([]uint, 0, len(reminders))
		for _, r := range reminders {
			r.Fired = true
			ids = append(ids, r.ID)
			due[r.UserID] = append(due[r.UserID], r)
		}
		return tx.Where("id IN ?", ids).Delete(&model.Reminder{}).Error
	})
	if err != nil {
		return nil, err
	}
	return due, nil
}

func (s *Store) futureTime(text string) (time.Time, error) {
	now := s.Now()
	at, ok := s.resolver.Resolve(text, now)
	if !ok {
		return time.Time{}, ErrParseFailure
	}
	if !at.After(now) {
		return time.Time{}, &PastTimeError{At: at.In(s.loc)}
	}
	return at, nil
}

func deleteReminder(tx *gorm.DB, r model.Reminder, now time.Time) error {
	if err := tx.Delete(&model.Reminder{}, r.ID).Error; err != nil {
		return err
	}
	return appendHistory(tx, r.UserID, model.HistoryReminderDelete, r.Title, now)
}

func moveReminder(tx *gorm.DB, r *model.Reminder, at, now time.Time) error {
	r.RemindAt = at.UTC()
	if err := tx.Model(&model.Reminder{}).Where("id = ?", r.ID).Update("remind_at", r.RemindAt).Error; err != nil {
		return err
	}
	return appendHistory(tx, r.UserID, model.HistoryReminderMove, r.Title, now)
}

func matchReminders(reminders []model.Reminder, query string) matcher.Result {
	titles := make([]string, len(reminders))
	for i, r := range reminders {
		titles[i] = r.Title
	}
	return matcher.Match(titles, query)
}

func ambiguous(reminders []model.Reminder, indices []int) error {
	e := &AmbiguousMatchError{}
	for _, i := range indices {
		e.Candidates = append(e.Candidates, reminders[i].Title)
		e.Positions = append(e.Positions, i+1)
	}
	return e
}

func reminderTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return defaultReminderTitle
	}
	return title
}
