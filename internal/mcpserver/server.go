// Package mcpserver exposes the agenda store as MCP tools so assistants can
// manage tasks and reminders directly.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pathakanu/myAgenda/internal/model"
	"github.com/pathakanu/myAgenda/internal/store"
	"github.com/pathakanu/myAgenda/internal/taskparse"
)

const (
	serverName    = "agenda"
	serverVersion = "1.0.0"
)

// DefaultUser is the user id tools act on when none is given.
const DefaultUser = "cli:local"

// Server is the MCP server for the agenda.
type Server struct {
	mcpServer *server.MCPServer
	store     *store.Store
	userID    string
}

// New creates a Server backed by st. Tools act on defaultUser unless the
// call passes a user_id.
func New(st *store.Store, defaultUser string) *Server {
	if defaultUser == "" {
		defaultUser = DefaultUser
	}
	s := &Server{store: st, userID: defaultUser}
	s.mcpServer = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
	)
	s.registerTools()
	return s
}

// MCPServer returns the underlying MCP server for serving.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func userArg() mcp.ToolOption {
	return mcp.WithString("user_id", mcp.Description("User id such as tg:123 or wa:+15551234567 (default: the server's user)"))
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("add_task",
			mcp.WithDescription("Add a task for today"),
			mcp.WithString("title", mcp.Required(), mcp.Description("Task title; priority words such as 'urgent' are understood when priority is omitted")),
			mcp.WithNumber("priority", mcp.Description("1 normal, 2 important, 3 urgent")),
			mcp.WithString("notes", mcp.Description("Optional notes")),
			userArg(),
		),
		s.handleAddTask,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_tasks",
			mcp.WithDescription("List tasks. Positions in the pending list are what mark_done expects"),
			mcp.WithString("scope", mcp.Description("pending (default), completed or all")),
			userArg(),
		),
		s.handleListTasks,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("mark_done",
			mcp.WithDescription("Mark pending tasks done by their 1-based pending positions, or all of them"),
			mcp.WithString("positions", mcp.Required(), mcp.Description("Positions such as \"2\" or \"1,3\", or \"all\"")),
			userArg(),
		),
		s.handleMarkDone,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("add_reminder",
			mcp.WithDescription("Schedule a one-shot reminder"),
			mcp.WithString("title", mcp.Required(), mcp.Description("What to remind about")),
			mcp.WithString("when", mcp.Required(), mcp.Description("Natural language ('in 20 minutes', 'tomorrow at 9am') or RFC3339")),
			userArg(),
		),
		s.handleAddReminder,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_reminders",
			mcp.WithDescription("List scheduled reminders in the order they were added"),
			userArg(),
		),
		s.handleListReminders,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("delete_reminder",
			mcp.WithDescription("Delete a reminder by 1-based position or by text, or every reminder with query \"all\""),
			mcp.WithNumber("position", mcp.Description("1-based position from list_reminders")),
			mcp.WithString("query", mcp.Description("Words from the reminder title, or \"all\"")),
			userArg(),
		),
		s.handleDeleteReminder,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("reschedule_reminder",
			mcp.WithDescription("Move a reminder to a new time. Without position or a matching query the most recent reminder is moved"),
			mcp.WithString("when", mcp.Required(), mcp.Description("New time in natural language")),
			mcp.WithNumber("position", mcp.Description("1-based position from list_reminders")),
			mcp.WithString("query", mcp.Description("Words from the reminder title")),
			userArg(),
		),
		s.handleRescheduleReminder,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("stats",
			mcp.WithDescription("Task totals and today's progress"),
			userArg(),
		),
		s.handleStats,
	)
}

type taskView struct {
	Position    int        `json:"position,omitempty"`
	Title       string     `json:"title"`
	Priority    int        `json:"priority"`
	Notes       string     `json:"notes,omitempty"`
	Done        bool       `json:"done"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type reminderView struct {
	Position int       `json:"position"`
	Title    string    `json:"title"`
	RemindAt time.Time `json:"remind_at"`
}

func (s *Server) user(req mcp.CallToolRequest) string {
	if id := strings.TrimSpace(req.GetString("user_id", "")); id != "" {
		return id
	}
	return s.userID
}

func (s *Server) taskViews(tasks []model.Task, numbered bool) []taskView {
	loc := s.store.Location()
	out := make([]taskView, len(tasks))
	for i, t := range tasks {
		v := taskView{
			Title:     t.Title,
			Priority:  int(t.Priority),
			Notes:     t.Notes,
			Done:      t.Done,
			CreatedAt: t.CreatedAt.In(loc),
		}
		if numbered {
			v.Position = i + 1
		}
		if t.CompletedAt != nil {
			at := t.CompletedAt.In(loc)
			v.CompletedAt = &at
		}
		out[i] = v
	}
	return out
}

func (s *Server) reminderView(position int, r model.Reminder) reminderView {
	return reminderView{Position: position, Title: r.Title, RemindAt: r.RemindAt.In(s.store.Location())}
}

func (s *Server) handleAddTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := strings.TrimSpace(req.GetString("title", ""))
	if title == "" {
		return mcp.NewToolResultError("title is required"), nil
	}

	draft := taskparse.Draft{Title: title, Notes: req.GetString("notes", "")}
	if p := req.GetFloat("priority", 0); p > 0 {
		draft.Priority = int(p)
	} else {
		parsed := taskparse.ParseFallback(title)
		draft.Title, draft.Priority = parsed.Title, parsed.Priority
	}

	t, err := s.store.AddTask(ctx, s.user(req), draft)
	if err != nil {
		return toolError("add task", err), nil
	}
	return jsonResult(s.taskViews([]model.Task{*t}, false)[0])
}

func (s *Server) handleListTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scope := store.ParseScope(req.GetString("scope", ""))
	tasks, err := s.store.ListTasks(ctx, s.user(req), scope)
	if err != nil {
		return toolError("list tasks", err), nil
	}
	if len(tasks) == 0 {
		return mcp.NewToolResultText("No tasks found."), nil
	}
	return jsonResult(s.taskViews(tasks, scope == store.ScopePending))
}

func (s *Server) handleMarkDone(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw := strings.TrimSpace(req.GetString("positions", ""))
	userID := s.user(req)

	if strings.EqualFold(raw, "all") {
		tasks, err := s.store.MarkAllDone(ctx, userID)
		if err != nil {
			return toolError("mark all done", err), nil
		}
		if len(tasks) == 0 {
			return mcp.NewToolResultText("No pending tasks."), nil
		}
		return jsonResult(map[string]any{"completed": s.taskViews(tasks, false)})
	}

	positions, err := parsePositions(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.store.MarkDoneByPendingIndices(ctx, userID, positions)
	if err != nil {
		return toolError("mark done", err), nil
	}
	if len(res.Completed) == 0 {
		return mcp.NewToolResultError(fmt.Sprintf("no pending task at position(s) %v", res.Invalid)), nil
	}
	return jsonResult(map[string]any{
		"completed": s.taskViews(res.Completed, false),
		"invalid":   res.Invalid,
	})
}

func (s *Server) handleAddReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := strings.TrimSpace(req.GetString("title", ""))
	when := strings.TrimSpace(req.GetString("when", ""))
	if title == "" {
		return mcp.NewToolResultError("title is required"), nil
	}
	if when == "" {
		return mcp.NewToolResultError("when is required"), nil
	}

	var (
		r   *model.Reminder
		err error
	)
	if at, perr := time.Parse(time.RFC3339, when); perr == nil {
		r, err = s.store.AddReminder(ctx, s.user(req), title, at)
	} else {
		r, err = s.store.AddReminderText(ctx, s.user(req), title, when)
	}
	if err != nil {
		return toolError("add reminder", err), nil
	}
	list, err := s.store.ListReminders(ctx, s.user(req))
	if err != nil {
		return toolError("list reminders", err), nil
	}
	return jsonResult(s.reminderView(len(list), *r))
}

func (s *Server) handleListReminders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reminders, err := s.store.ListReminders(ctx, s.user(req))
	if err != nil {
		return toolError("list reminders", err), nil
	}
	if len(reminders) == 0 {
		return mcp.NewToolResultText("No reminders found."), nil
	}
	views := make([]reminderView, len(reminders))
	for i, r := range reminders {
		views[i] = s.reminderView(i+1, r)
	}
	return jsonResult(views)
}

func (s *Server) handleDeleteReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := s.user(req)
	position := int(req.GetFloat("position", 0))
	query := strings.TrimSpace(req.GetString("query", ""))

	var (
		r   *model.Reminder
		err error
	)
	switch {
	case position > 0:
		r, err = s.store.DeleteReminderByIndex(ctx, userID, position)
	case strings.EqualFold(query, "all"):
		n, err := s.store.DeleteAllReminders(ctx, userID)
		if err != nil {
			return toolError("delete reminders", err), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Deleted %d reminder(s).", n)), nil
	case query != "":
		r, err = s.store.DeleteReminderByText(ctx, userID, query)
	default:
		return mcp.NewToolResultError("position or query is required"), nil
	}
	if err != nil {
		return toolError("delete reminder", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted reminder %q.", r.Title)), nil
}

func (s *Server) handleRescheduleReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := s.user(req)
	when := strings.TrimSpace(req.GetString("when", ""))
	if when == "" {
		return mcp.NewToolResultError("when is required"), nil
	}

	var (
		r   *model.Reminder
		err error
	)
	if position := int(req.GetFloat("position", 0)); position > 0 {
		r, err = s.store.RescheduleReminderByIndex(ctx, userID, position, when)
	} else {
		text := strings.TrimSpace(req.GetString("query", "") + " " + when)
		r, err = s.store.RescheduleReminderByText(ctx, userID, text)
	}
	if err != nil {
		return toolError("reschedule reminder", err), nil
	}
	return jsonResult(map[string]any{
		"title":     r.Title,
		"remind_at": r.RemindAt.In(s.store.Location()),
	})
}

func (s *Server) handleStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := s.user(req)
	st, err := s.store.Stats(ctx, userID)
	if err != nil {
		return toolError("stats", err), nil
	}
	day, err := s.store.DaySummary(ctx, userID)
	if err != nil {
		return toolError("day summary", err), nil
	}
	return jsonResult(map[string]any{
		"total":           st.Total,
		"completed":       st.Completed,
		"pending":         st.Pending,
		"completed_today": st.CompletedToday,
		"urgent_pending":  st.UrgentPending,
		"active_days":     st.ActiveDays,
		"mood_today":      day.Mood,
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(output)), nil
}

// toolError turns store errors into messages a model can act on.
func toolError(op string, err error) *mcp.CallToolResult {
	var amb *store.AmbiguousMatchError
	switch {
	case errors.As(err, &amb):
		pos := make([]string, len(amb.Positions))
		for i, p := range amb.Positions {
			pos[i] = fmt.Sprintf("%d (%s)", p, amb.Candidates[i])
		}
		return mcp.NewToolResultError("several reminders match, retry with one of the positions: " + strings.Join(pos, ", "))
	case errors.Is(err, store.ErrParseFailure),
		errors.Is(err, store.ErrPastTime),
		errors.Is(err, store.ErrIndexOutOfRange),
		errors.Is(err, store.ErrNotFound):
		return mcp.NewToolResultError(err.Error())
	default:
		return mcp.NewToolResultError(fmt.Sprintf("failed to %s: %v", op, err))
	}
}

func parsePositions(s string) ([]int, error) {
	tokens := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	if len(tokens) == 0 {
		return nil, errors.New("positions is required")
	}
	out := make([]int, 0, len(tokens))
	for _, tok := range tokens {
		n, err := strconv.Atoi(tok)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid position %q", tok)
		}
		out = append(out, n)
	}
	return out, nil
}
