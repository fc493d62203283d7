package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pathakanu/myAgenda/internal/model"
	"github.com/pathakanu/myAgenda/internal/taskparse"
	"gorm.io/gorm"
)

// Scope selects which tasks ListTasks returns.
type Scope string

const (
	ScopePending   Scope = "pending"
	ScopeCompleted Scope = "completed"
	ScopeAll       Scope = "all"
)

// ParseScope maps free text to a Scope, defaulting to pending.
func ParseScope(s string) Scope {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopeCompleted, "done":
		return ScopeCompleted
	case ScopeAll:
		return ScopeAll
	default:
		return ScopePending
	}
}

// MarkResult reports a multi-index completion.
type MarkResult struct {
	Completed []model.Task
	Invalid   []int
}

// AddTask stores one task and makes it the user's last added task.
func (s *Store) AddTask(ctx context.Context, userID string, draft taskparse.Draft) (*model.Task, error) {
	tasks, err := s.addTasks(ctx, userID, []taskparse.Draft{draft}, model.HistoryTaskAdd)
	if err != nil {
		return nil, err
	}
	return &tasks[0], nil
}

// AddTasks stores several tasks in order. The last one becomes the user's
// last added task.
func (s *Store) AddTasks(ctx context.Context, userID string, drafts []taskparse.Draft) ([]model.Task, error) {
	if len(drafts) == 0 {
		return nil, nil
	}
	return s.addTasks(ctx, userID, drafts, model.HistoryMultipleTasksAdd)
}

func (s *Store) addTasks(ctx context.Context, userID string, drafts []taskparse.Draft, kind string) ([]model.Task, error) {
	now := s.Now()
	tasks := make([]model.Task, len(drafts))
	titles := make([]string, len(drafts))
	for i, d := range drafts {
		title := strings.TrimSpace(d.Title)
		if title == "" {
			title = taskparse.Placeholder
		}
		tasks[i] = model.Task{
			UserID:    userID,
			Title:     title,
			Priority:  model.Priority(taskparse.ClampPriority(d.Priority)),
			Notes:     strings.TrimSpace(d.Notes),
			CreatedAt: now.UTC(),
		}
		titles[i] = title
	}

	err := s.mutate(ctx, userID, func(tx *gorm.DB) error {
		if err := tx.Create(&tasks).Error; err != nil {
			return err
		}
		last := tasks[len(tasks)-1].ID
		if err := tx.Model(&model.User{}).Where("id = ?", userID).Update("last_added_task_id", last).Error; err != nil {
			return err
		}
		return appendHistory(tx, userID, kind, strings.Join(titles, "; "), now)
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListTasks returns the user's tasks in insertion order, filtered by scope.
func (s *Store) ListTasks(ctx context.Context, userID string, scope Scope) ([]model.Task, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	switch scope {
	case ScopeCompleted:
		q = q.Where("done = ?", true)
	case ScopeAll:
	default:
		q = q.Where("done = ?", false)
	}
	var tasks []model.Task
	err := q.Order("id ASC").Find(&tasks).Error
	return tasks, err
}

// LastAddedTask returns the task most recently added by the user, or nil.
func (s *Store) LastAddedTask(ctx context.Context, userID string) (*model.Task, error) {
	var u model.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).Limit(1).Find(&u).Error
	if err != nil || u.LastAddedTaskID == nil {
		return nil, err
	}
	var t model.Task
	if err := s.db.WithContext(ctx).Where("id = ?", *u.LastAddedTaskID).Limit(1).Find(&t).Error; err != nil {
		return nil, err
	}
	if t.ID == 0 {
		return nil, nil
	}
	return &t, nil
}

// MarkDoneByPendingIndex completes the task at the 1-based position of the
// current pending list.
func (s *Store) MarkDoneByPendingIndex(ctx context.Context, userID string, position int) (*model.Task, error) {
	var done model.Task
	err := s.mutate(ctx, userID, func(tx *gorm.DB) error {
		pending, err := pendingTasks(tx, userID)
		if err != nil {
			return err
		}
		if position < 1 || position > len(pending) {
			return ErrIndexOutOfRange
		}
		now := s.Now()
		done = pending[position-1]
		if err := completeTasks(tx, now, &done); err != nil {
			return err
		}
		return appendHistory(tx, userID, model.HistoryTaskDone, done.Title, now)
	})
	if err != nil {
		return nil, err
	}
	return &done, nil
}

// MarkDoneByPendingIndices completes several tasks in one step. Every
// position refers to the pending list as it was before the call; positions
// outside it are reported in Invalid and repeats are ignored.
func (s *Store) MarkDoneByPendingIndices(ctx context.Context, userID string, positions []int) (MarkResult, error) {
	var result MarkResult
	err := s.mutate(ctx, userID, func(tx *gorm.DB) error {
		result = MarkResult{}
		pending, err := pendingTasks(tx, userID)
		if err != nil {
			return err
		}
		seen := make(map[int]bool, len(positions))
		var picked []*model.Task
		for _, p := range positions {
			if p < 1 || p > len(pending) {
				result.Invalid = append(result.Invalid, p)
				continue
			}
			if seen[p] {
				continue
			}
			seen[p] = true
			picked = append(picked, &pending[p-1])
		}
		if len(picked) == 0 {
			return nil
		}
		now := s.Now()
		if err := completeTasks(tx, now, picked...); err != nil {
			return err
		}
		titles := make([]string, len(picked))
		for i, t := range picked {
			result.Completed = append(result.Completed, *t)
			titles[i] = t.Title
		}
		return appendHistory(tx, userID, model.HistoryTaskDone, strings.Join(titles, "; "), now)
	})
	return result, err
}

// MarkAllDone completes every pending task with one shared timestamp. An
// empty result means there was nothing pending.
func (s *Store) MarkAllDone(ctx context.Context, userID string) ([]model.Task, error) {
	var completed []model.Task
	err := s.mutate(ctx, userID, func(tx *gorm.DB) error {
		pending, err := pendingTasks(tx, userID)
		if err != nil || len(pending) == 0 {
			return err
		}
		now := s.Now()
		picked := make([]*model.Task, len(pending))
		for i := range pending {
			picked[i] = &pending[i]
		}
		if err := completeTasks(tx, now, picked...); err != nil {
			return err
		}
		completed = pending
		return appendHistory(tx, userID, model.HistoryMarkAllDone, "", now)
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

// SuggestOrder returns pending tasks by descending priority, keeping
// insertion order among equal priorities.
func (s *Store) SuggestOrder(ctx context.Context, userID string) ([]model.Task, error) {
	pending, err := s.ListTasks(ctx, userID, ScopePending)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Priority > pending[j].Priority
	})
	return pending, nil
}

// PendingByUser returns every user's pending tasks, used by the morning digest.
func (s *Store) PendingByUser(ctx context.Context) (map[string][]model.Task, error) {
	var tasks []model.Task
	if err := s.db.WithContext(ctx).Where("done = ?", false).Order("id ASC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	byUser := make(map[string][]model.Task)
	for _, t := range tasks {
		byUser[t.UserID] = append(byUser[t.UserID], t)
	}
	return byUser, nil
}

func pendingTasks(tx *gorm.DB, userID string) ([]model.Task, error) {
	var tasks []model.Task
	err := tx.Where("user_id = ? AND done = ?", userID, false).Order("id ASC").Find(&tasks).Error
	return tasks, err
}

func completeTasks(tx *gorm.DB, now time.Time, tasks ...*model.Task) error {
	at := now.UTC()
	ids := make([]uint, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
		t.Done = true
		t.CompletedAt = &at
	}
	return tx.Model(&model.Task{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"done": true, "completed_at": at}).Error
}
