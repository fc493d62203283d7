package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/pathakanu/myAgenda/internal/database"
	"github.com/pathakanu/myAgenda/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var refTime = time.Date(2026, 3, 10, 14, 20, 0, 0, time.UTC)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_fk=1", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open sqlite memory: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	st := store.New(db, store.WithClock(func() time.Time { return refTime }), store.WithLocation(time.UTC))
	return New(st, "")
}

func call(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
	res, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if len(res.Content) == 0 {
		t.Fatalf("empty result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want text", res.Content[0])
	}
	return text.Text, res.IsError
}

func TestTaskTools(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	out, isErr := call(t, s.handleAddTask, map[string]any{"title": "urgent call the bank"})
	if isErr {
		t.Fatalf("add_task error: %s", out)
	}
	var added taskView
	if err := json.Unmarshal([]byte(out), &added); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if added.Title != "Call the bank" || added.Priority != 3 {
		t.Fatalf("added = %+v", added)
	}

	call(t, s.handleAddTask, map[string]any{"title": "Water plants", "priority": 1.0})
	call(t, s.handleAddTask, map[string]any{"title": "Other user's task", "user_id": "tg:9"})

	out, _ = call(t, s.handleListTasks, nil)
	var listed []taskView
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("decode list: %v (%s)", err, out)
	}
	if len(listed) != 2 || listed[1].Position != 2 {
		t.Fatalf("list = %+v", listed)
	}

	out, isErr = call(t, s.handleMarkDone, map[string]any{"positions": "2, 7"})
	if isErr || !strings.Contains(out, "Water plants") || !strings.Contains(out, "7") {
		t.Fatalf("mark_done = %s (error %v)", out, isErr)
	}

	if out, isErr = call(t, s.handleMarkDone, map[string]any{"positions": "x"}); !isErr {
		t.Fatalf("invalid positions should fail, got %s", out)
	}

	out, _ = call(t, s.handleMarkDone, map[string]any{"positions": "all"})
	if !strings.Contains(out, "Call the bank") {
		t.Fatalf("mark all = %s", out)
	}
	if out, _ = call(t, s.handleListTasks, nil); out != "No tasks found." {
		t.Fatalf("pending after all done = %s", out)
	}

	out, _ = call(t, s.handleStats, nil)
	var stats map[string]any
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats["completed"] != 2.0 || stats["pending"] != 0.0 {
		t.Fatalf("stats = %v", stats)
	}
}

func TestReminderTools(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	if out, isErr := call(t, s.handleAddReminder, map[string]any{"title": "Call mom", "when": "in 20 minutes"}); isErr {
		t.Fatalf("add_reminder: %s", out)
	}
	at := refTime.Add(2 * time.Hour).Format(time.RFC3339)
	out, isErr := call(t, s.handleAddReminder, map[string]any{"title": "Call dad", "when": at})
	if isErr || !strings.Contains(out, `"position": 2`) {
		t.Fatalf("add_reminder RFC3339 = %s", out)
	}

	if out, isErr = call(t, s.handleAddReminder, map[string]any{"title": "Past", "when": refTime.Add(-time.Hour).Format(time.RFC3339)}); !isErr {
		t.Fatalf("past time should fail, got %s", out)
	}

	out, isErr = call(t, s.handleDeleteReminder, map[string]any{"query": "call"})
	if !isErr || !strings.Contains(out, "1 (Call mom)") || !strings.Contains(out, "2 (Call dad)") {
		t.Fatalf("ambiguous delete = %s", out)
	}

	out, isErr = call(t, s.handleRescheduleReminder, map[string]any{"position": 2.0, "when": "in 3 hours"})
	if isErr || !strings.Contains(out, "Call dad") {
		t.Fatalf("reschedule = %s", out)
	}

	out, _ = call(t, s.handleDeleteReminder, map[string]any{"position": 1.0})
	if out != `Deleted reminder "Call mom".` {
		t.Fatalf("delete = %s", out)
	}
	if _, isErr = call(t, s.handleDeleteReminder, map[string]any{"position": 5.0}); !isErr {
		t.Fatalf("out of range delete should fail")
	}

	out, _ = call(t, s.handleDeleteReminder, map[string]any{"query": "all"})
	if out != "Deleted 1 reminder(s)." {
		t.Fatalf("delete all = %s", out)
	}
	if out, _ = call(t, s.handleListReminders, nil); out != "No reminders found." {
		t.Fatalf("list after delete all = %s", out)
	}
}

func TestRequiredArguments(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	cases := []struct {
		name    string
		handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		args    map[string]any
	}{
		{"add_task", s.handleAddTask, map[string]any{"title": "  "}},
		{"add_reminder", s.handleAddReminder, map[string]any{"title": "x"}},
		{"delete_reminder", s.handleDeleteReminder, nil},
		{"reschedule_reminder", s.handleRescheduleReminder, map[string]any{"query": "x"}},
		{"mark_done", s.handleMarkDone, nil},
	}
	for _, tc := range cases {
		if out, isErr := call(t, tc.handler, tc.args); !isErr {
			t.Fatalf("%s: expected error, got %s", tc.name, out)
		}
	}
}

func TestParsePositions(t *testing.T) {
	t.Parallel()

	got, err := parsePositions("1, 3 4")
	if err != nil || len(got) != 3 || got[2] != 4 {
		t.Fatalf("parsePositions = %v, %v", got, err)
	}
	if _, err := parsePositions("0"); err == nil {
		t.Fatalf("zero should be rejected")
	}
}
