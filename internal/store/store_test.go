package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pathakanu/myAgenda/internal/database"
	"github.com/pathakanu/myAgenda/internal/model"
	"github.com/pathakanu/myAgenda/internal/taskparse"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var refTime = time.Date(2026, 3, 10, 14, 20, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T) (*Store, *testClock) {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_fk=1", name, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open sqlite memory: %v", err)
	}
	return wrapTestDB(t, db)
}

func wrapTestDB(t *testing.T, db *gorm.DB) (*Store, *testClock) {
	t.Helper()

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	clock := &testClock{now: refTime}
	return New(db, WithClock(clock.Now), WithLocation(time.UTC)), clock
}

func titles[T model.Task | model.Reminder](items []T) []string {
	out := make([]string, len(items))
	for i, it := range items {
		switch v := any(it).(type) {
		case model.Task:
			out[i] = v.Title
		case model.Reminder:
			out[i] = v.Title
		}
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func seedReminders(t *testing.T, s *Store, user string, names ...string) {
	t.Helper()
	for i, name := range names {
		at := s.Now().Add(time.Duration(i+1) * time.Hour)
		if _, err := s.AddReminder(context.Background(), user, name, at); err != nil {
			t.Fatalf("seed reminder %q: %v", name, err)
		}
	}
}

func seedTasks(t *testing.T, s *Store, user string, names ...string) {
	t.Helper()
	drafts := make([]taskparse.Draft, len(names))
	for i, name := range names {
		drafts[i] = taskparse.Draft{Title: name, Priority: taskparse.PriorityNormal}
	}
	if _, err := s.AddTasks(context.Background(), user, drafts); err != nil {
		t.Fatalf("seed tasks: %v", err)
	}
}

func TestAddReminderRejectsPastAndPresent(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, at := range []time.Time{refTime, refTime.Add(-time.Minute)} {
		_, err := s.AddReminder(ctx, "user", "late", at)
		if !errors.Is(err, ErrPastTime) {
			t.Fatalf("AddReminder(%v) error = %v, want ErrPastTime", at, err)
		}
		var pe *PastTimeError
		if !errors.As(err, &pe) || !pe.At.Equal(at) {
			t.Fatalf("expected PastTimeError carrying %v, got %v", at, err)
		}
	}

	list, err := s.ListReminders(ctx, "user")
	if err != nil {
		t.Fatalf("ListReminders: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected nothing stored, got %+v", list)
	}
}

func TestAddReminderText(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()

	r, err := s.AddReminderText(ctx, "user", "  ", "in 5 minutes")
	if err != nil {
		t.Fatalf("AddReminderText: %v", err)
	}
	if r.Title != "Reminder" {
		t.Fatalf("empty title should default, got %q", r.Title)
	}
	if want := refTime.Add(5 * time.Minute); !r.RemindAt.Equal(want) {
		t.Fatalf("RemindAt = %v, want %v", r.RemindAt, want)
	}

	if _, err := s.AddReminderText(ctx, "user", "x", "whenever you like"); !errors.Is(err, ErrParseFailure) {
		t.Fatalf("expected ErrParseFailure, got %v", err)
	}
}

func TestAddRemindersReportsFailures(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()

	added, failed, err := s.AddReminders(ctx, "user", []ReminderDraft{
		{Title: "call mum", When: "in 10 minutes"},
		{Title: "pay rent", When: "some day"},
		{Title: "gym", When: "at 18"},
	})
	if err != nil {
		t.Fatalf("AddReminders: %v", err)
	}
	if got := titles(added); !equalStrings(got, []string{"call mum", "gym"}) {
		t.Fatalf("added = %v", got)
	}
	if !equalStrings(failed, []string{"pay rent"}) {
		t.Fatalf("failed = %v", failed)
	}

	list, _ := s.ListReminders(ctx, "user")
	if got := titles(list); !equalStrings(got, []string{"call mum", "gym"}) {
		t.Fatalf("stored = %v", got)
	}
}

func TestDeleteReminderByIndex(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()
	seedReminders(t, s, "user", "alpha", "beta", "gamma")

	for _, pos := range []int{0, 4, -1} {
		if _, err := s.DeleteReminderByIndex(ctx, "user", pos); !errors.Is(err, ErrIndexOutOfRange) {
			t.Fatalf("position %d: expected ErrIndexOutOfRange, got %v", pos, err)
		}
	}

	removed, err := s.DeleteReminderByIndex(ctx, "user", 2)
	if err != nil {
		t.Fatalf("DeleteReminderByIndex: %v", err)
	}
	if removed.Title != "beta" {
		t.Fatalf("removed %q, want beta", removed.Title)
	}

	list, _ := s.ListReminders(ctx, "user")
	if got := titles(list); !equalStrings(got, []string{"alpha", "gamma"}) {
		t.Fatalf("remaining = %v", got)
	}
}

func TestDeleteReminderByText(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()
	seedReminders(t, s, "user", "dentist appointment", "vet appointment", "buy milk")

	_, err := s.DeleteReminderByText(ctx, "user", "delete the appointment")
	var amb *AmbiguousMatchError
	if !errors.As(err, &amb) || !errors.Is(err, ErrAmbiguousMatch) {
		t.Fatalf("expected ambiguous match, got %v", err)
	}
	if !equalStrings(amb.Candidates, []string{"dentist appointment", "vet appointment"}) {
		t.Fatalf("candidates = %v", amb.Candidates)
	}
	if len(amb.Positions) != 2 || amb.Positions[0] != 1 || amb.Positions[1] != 2 {
		t.Fatalf("positions = %v", amb.Positions)
	}

	if _, err := s.DeleteReminderByText(ctx, "user", "cancel the gym"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	removed, err := s.DeleteReminderByText(ctx, "user", "remove the dentist one")
	if err != nil {
		t.Fatalf("DeleteReminderByText: %v", err)
	}
	if removed.Title != "dentist appointment" {
		t.Fatalf("removed %q", removed.Title)
	}

	list, _ := s.ListReminders(ctx, "user")
	if got := titles(list); !equalStrings(got, []string{"vet appointment", "buy milk"}) {
		t.Fatalf("remaining = %v", got)
	}
}

func TestDeleteAllReminders(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()
	seedReminders(t, s, "user", "one", "two")
	seedReminders(t, s, "other", "keep")

	n, err := s.DeleteAllReminders(ctx, "user")
	if err != nil || n != 2 {
		t.Fatalf("DeleteAllReminders = %d, %v", n, err)
	}
	if list, _ := s.ListReminders(ctx, "other"); len(list) != 1 {
		t.Fatalf("other user's reminders touched: %+v", list)
	}
}

func TestReminderTextKeepsClockOnNamedDay(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()

	r, err := s.AddReminderText(ctx, "user", "Call mom", "tomorrow at 18hs")
	if err != nil {
		t.Fatalf("AddReminderText: %v", err)
	}
	if want := time.Date(2026, 3, 11, 18, 0, 0, 0, time.UTC); !r.RemindAt.Equal(want) {
		t.Fatalf("RemindAt = %v, want %v", r.RemindAt, want)
	}

	moved, err := s.RescheduleReminderByText(ctx, "user", "move mom to friday at 10")
	if err != nil {
		t.Fatalf("RescheduleReminderByText: %v", err)
	}
	if want := time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC); !moved.RemindAt.Equal(want) {
		t.Fatalf("moved to %v, want %v", moved.RemindAt, want)
	}
}

func TestRescheduleReminderByText(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := s.RescheduleReminderByText(ctx, "user", "move it to in 5 minutes"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty list: expected ErrNotFound, got %v", err)
	}

	seedReminders(t, s, "user", "dentist appointment", "vet appointment", "buy milk")

	moved, err := s.RescheduleReminderByText(ctx, "user", "move dentist to in 30 minutes")
	if err != nil {
		t.Fatalf("reschedule by keyword: %v", err)
	}
	if moved.Title != "dentist appointment" || !moved.RemindAt.Equal(refTime.Add(30*time.Minute)) {
		t.Fatalf("unexpected move: %+v", moved)
	}

	moved, err = s.RescheduleReminderByText(ctx, "user", "push it to in 10 minutes")
	if err != nil {
		t.Fatalf("reschedule fallback: %v", err)
	}
	if moved.Title != "buy milk" {
		t.Fatalf("no match should move the most recent reminder, moved %q", moved.Title)
	}

	if _, err := s.RescheduleReminderByText(ctx, "user", "move the appointment to in 10 minutes"); !errors.Is(err, ErrAmbiguousMatch) {
		t.Fatalf("expected ErrAmbiguousMatch, got %v", err)
	}
	if _, err := s.RescheduleReminderByText(ctx, "user", "move dentist later"); !errors.Is(err, ErrParseFailure) {
		t.Fatalf("expected ErrParseFailure, got %v", err)
	}

	list, _ := s.ListReminders(ctx, "user")
	if got := titles(list); !equalStrings(got, []string{"dentist appointment", "vet appointment", "buy milk"}) {
		t.Fatalf("reschedule must keep list order, got %v", got)
	}
}

func TestRescheduleReminderByIndex(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()
	seedReminders(t, s, "user", "alpha", "beta")

	if _, err := s.RescheduleReminderByIndex(ctx, "user", 3, "in 5 minutes"); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
	moved, err := s.RescheduleReminderByIndex(ctx, "user", 2, "in 5 minutes")
	if err != nil {
		t.Fatalf("RescheduleReminderByIndex: %v", err)
	}
	if moved.Title != "beta" || !moved.RemindAt.Equal(refTime.Add(5*time.Minute)) {
		t.Fatalf("unexpected move: %+v", moved)
	}
}

func TestDueSweepDeliversOnce(t *testing.T) {
	t.Parallel()
	s, clock := newTestStore(t)
	ctx := context.Background()

	mustAdd := func(user, title string, in time.Duration) {
		t.Helper()
		if _, err := s.AddReminder(ctx, user, title, refTime.Add(in)); err != nil {
			t.Fatalf("AddReminder: %v", err)
		}
	}
	mustAdd("a", "soon", time.Minute)
	mustAdd("a", "later", 10*time.Minute)
	mustAdd("b", "also soon", 2*time.Minute)
	mustAdd("a", "right after", 3*time.Minute)

	due, err := s.DueSweep(ctx, refTime)
	if err != nil || len(due) != 0 {
		t.Fatalf("nothing should be due yet: %v %v", due, err)
	}

	clock.Advance(5 * time.Minute)
	due, err = s.DueSweep(ctx, clock.Now())
	if err != nil {
		t.Fatalf("DueSweep: %v", err)
	}
	if got := titles(due["a"]); !equalStrings(got, []string{"soon", "right after"}) {
		t.Fatalf("user a due = %v", got)
	}
	if got := titles(due["b"]); !equalStrings(got, []string{"also soon"}) {
		t.Fatalf("user b due = %v", got)
	}
	for _, r := range due["a"] {
		if !r.Fired {
			t.Fatalf("swept reminder not marked fired: %+v", r)
		}
	}

	again, err := s.DueSweep(ctx, clock.Now())
	if err != nil || len(again) != 0 {
		t.Fatalf("second sweep must be empty, got %v %v", again, err)
	}

	list, _ := s.ListReminders(ctx, "a")
	if got := titles(list); !equalStrings(got, []string{"later"}) {
		t.Fatalf("remaining = %v", got)
	}
}

func TestDueSweepIncludesExactBoundary(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()

	at := refTime.Add(time.Minute)
	if _, err := s.AddReminder(ctx, "user", "edge", at); err != nil {
		t.Fatalf("AddReminder: %v", err)
	}
	due, err := s.DueSweep(ctx, at)
	if err != nil {
		t.Fatalf("DueSweep: %v", err)
	}
	if len(due["user"]) != 1 {
		t.Fatalf("reminder at sweep time must be due, got %v", due)
	}
}

func TestAddTasksClampsAndTracksLastAdded(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()

	if last, err := s.LastAddedTask(ctx, "user"); err != nil || last != nil {
		t.Fatalf("new user has no last task, got %+v %v", last, err)
	}

	added, err := s.AddTasks(ctx, "user", []taskparse.Draft{
		{Title: "low", Priority: 0},
		{Title: "high", Priority: 7},
		{Title: "  ", Priority: 2},
	})
	if err != nil {
		t.Fatalf("AddTasks: %v", err)
	}
	if added[0].Priority != model.PriorityNormal || added[1].Priority != model.PriorityUrgent {
		t.Fatalf("priorities not clamped: %+v", added)
	}
	if added[2].Title != taskparse.Placeholder {
		t.Fatalf("blank title = %q", added[2].Title)
	}

	last, err := s.LastAddedTask(ctx, "user")
	if err != nil || last == nil || last.ID != added[2].ID {
		t.Fatalf("LastAddedTask = %+v, %v", last, err)
	}

	one, err := s.AddTask(ctx, "user", taskparse.Draft{Title: "single"})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if last, _ := s.LastAddedTask(ctx, "user"); last == nil || last.ID != one.ID {
		t.Fatalf("LastAddedTask after AddTask = %+v", last)
	}
}

func TestMarkDoneByPendingIndexReindexes(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()
	seedTasks(t, s, "user", "A", "B", "C")

	done, err := s.MarkDoneByPendingIndex(ctx, "user", 2)
	if err != nil || done.Title != "B" || !done.Done || done.CompletedAt == nil {
		t.Fatalf("first completion = %+v, %v", done, err)
	}

	done, err = s.MarkDoneByPendingIndex(ctx, "user", 2)
	if err != nil || done.Title != "C" {
		t.Fatalf("position 2 should now be C, got %+v, %v", done, err)
	}

	if _, err := s.MarkDoneByPendingIndex(ctx, "user", 2); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}

	all, _ := s.ListTasks(ctx, "user", ScopeAll)
	if len(all) != 3 {
		t.Fatalf("tasks must never be removed, got %d", len(all))
	}
	completed, _ := s.ListTasks(ctx, "user", ScopeCompleted)
	if got := titles(completed); !equalStrings(got, []string{"B", "C"}) {
		t.Fatalf("completed = %v", got)
	}
}

func TestMarkDoneByPendingIndicesUsesSnapshot(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()
	seedTasks(t, s, "user", "A", "B", "C", "D")

	res, err := s.MarkDoneByPendingIndices(ctx, "user", []int{1, 3, 3, 9})
	if err != nil {
		t.Fatalf("MarkDoneByPendingIndices: %v", err)
	}
	if got := titles(res.Completed); !equalStrings(got, []string{"A", "C"}) {
		t.Fatalf("completed = %v", got)
	}
	if len(res.Invalid) != 1 || res.Invalid[0] != 9 {
		t.Fatalf("invalid = %v", res.Invalid)
	}

	pending, _ := s.ListTasks(ctx, "user", ScopePending)
	if got := titles(pending); !equalStrings(got, []string{"B", "D"}) {
		t.Fatalf("pending = %v", got)
	}
}

func TestMarkAllDone(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()
	seedTasks(t, s, "user", "A", "B")

	done, err := s.MarkAllDone(ctx, "user")
	if err != nil || len(done) != 2 {
		t.Fatalf("MarkAllDone = %+v, %v", done, err)
	}
	if !done[0].CompletedAt.Equal(*done[1].CompletedAt) {
		t.Fatalf("expected one shared timestamp, got %v and %v", done[0].CompletedAt, done[1].CompletedAt)
	}

	again, err := s.MarkAllDone(ctx, "user")
	if err != nil || len(again) != 0 {
		t.Fatalf("nothing pending should be a no-op, got %+v, %v", again, err)
	}
}

func TestSuggestOrderIsStable(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddTasks(ctx, "user", []taskparse.Draft{
		{Title: "email", Priority: 1},
		{Title: "taxes", Priority: 3},
		{Title: "groceries", Priority: 2},
		{Title: "rent", Priority: 3},
		{Title: "plants", Priority: 1},
	})
	if err != nil {
		t.Fatalf("AddTasks: %v", err)
	}

	order, err := s.SuggestOrder(ctx, "user")
	if err != nil {
		t.Fatalf("SuggestOrder: %v", err)
	}
	want := []string{"taxes", "rent", "groceries", "email", "plants"}
	if got := titles(order); !equalStrings(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestStatsAndDaySummary(t *testing.T) {
	t.Parallel()
	s, clock := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddTasks(ctx, "user", []taskparse.Draft{
		{Title: "a", Priority: 3},
		{Title: "b", Priority: 3},
		{Title: "c", Priority: 1},
	})
	if err != nil {
		t.Fatalf("AddTasks: %v", err)
	}
	if _, err := s.MarkDoneByPendingIndex(ctx, "user", 1); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}
	if err := s.RecordMood(ctx, "user", 0.8, "great day"); err != nil {
		t.Fatalf("RecordMood: %v", err)
	}

	st, err := s.Stats(ctx, "user")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := Stats{Total: 3, Completed: 1, Pending: 2, CompletedToday: 1, UrgentPending: 1, ActiveDays: 1}
	if st != want {
		t.Fatalf("Stats = %+v, want %+v", st, want)
	}

	sum, err := s.DaySummary(ctx, "user")
	if err != nil {
		t.Fatalf("DaySummary: %v", err)
	}
	if sum.Mood != "positive" || sum.CompletedToday != 1 || sum.Pending != 2 {
		t.Fatalf("DaySummary = %+v", sum)
	}

	clock.Advance(24 * time.Hour)
	sum, _ = s.DaySummary(ctx, "user")
	if sum.Mood != "" || sum.CompletedToday != 0 {
		t.Fatalf("yesterday's data leaked into today: %+v", sum)
	}
}

func TestRecentHistoryIsChronological(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, raw := range []string{"one", "two", "three"} {
		if err := s.AppendHistory(ctx, "user", model.HistoryMessage, raw); err != nil {
			t.Fatalf("AppendHistory: %v", err)
		}
	}
	entries, err := s.RecentHistory(ctx, "user", 2)
	if err != nil {
		t.Fatalf("RecentHistory: %v", err)
	}
	if len(entries) != 2 || entries[0].Raw != "two" || entries[1].Raw != "three" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestMutationsRequireUserID(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	if _, err := s.AddTask(context.Background(), " ", taskparse.Draft{Title: "x"}); !errors.Is(err, ErrNoUser) {
		t.Fatalf("expected ErrNoUser, got %v", err)
	}
}

func TestImport(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()

	idx := 0
	err := s.Import(ctx, []ImportedUser{{
		ID: "tg:42",
		Tasks: []model.Task{
			{Title: "legacy one", Priority: model.PriorityImportant, CreatedAt: refTime.Add(-48 * time.Hour)},
			{Title: "legacy two", Priority: model.PriorityNormal, CreatedAt: refTime.Add(-24 * time.Hour)},
		},
		Reminders:      []model.Reminder{{Title: "old reminder", RemindAt: refTime.Add(time.Hour)}},
		History:        []model.HistoryEntry{{Kind: model.HistoryTaskAdd, Raw: "legacy one"}},
		LastAddedIndex: &idx,
	}})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	tasks, _ := s.ListTasks(ctx, "tg:42", ScopeAll)
	if got := titles(tasks); !equalStrings(got, []string{"legacy one", "legacy two"}) {
		t.Fatalf("tasks = %v", got)
	}
	last, _ := s.LastAddedTask(ctx, "tg:42")
	if last == nil || last.Title != "legacy one" {
		t.Fatalf("LastAddedTask = %+v", last)
	}
	reminders, _ := s.ListReminders(ctx, "tg:42")
	if len(reminders) != 1 {
		t.Fatalf("reminders = %+v", reminders)
	}
}

func TestConcurrentMutationsKeepEveryUpdate(t *testing.T) {
	t.Parallel()

	db, err := database.New("", filepath.Join(t.TempDir(), "agenda.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	s, _ := wrapTestDB(t, db)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, 2*n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.AddTask(ctx, "user", taskparse.Draft{Title: fmt.Sprintf("task %d", i)})
			errs <- err
		}(i)
	}
	wg.Wait()

	for i := 0; i < n/2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.MarkDoneByPendingIndex(ctx, "user", 1)
			errs <- err
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := s.DueSweep(ctx, refTime)
		errs <- err
	}()
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent call failed: %v", err)
		}
	}

	all, _ := s.ListTasks(ctx, "user", ScopeAll)
	completed, _ := s.ListTasks(ctx, "user", ScopeCompleted)
	if len(all) != n || len(completed) != n/2 {
		t.Fatalf("lost updates: %d tasks, %d completed", len(all), len(completed))
	}
}

func TestUserLocksAreReleased(t *testing.T) {
	t.Parallel()
	l := &userLocks{locks: make(map[string]*userLock)}

	unlock := l.lock("a")
	unlock()
	if len(l.locks) != 0 {
		t.Fatalf("lock entry should be dropped, got %d", len(l.locks))
	}
}
