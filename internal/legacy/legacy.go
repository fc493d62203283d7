// Package legacy reads the single-document agenda store used by earlier
// releases and converts it into store records.
//
// The document is JSON ({"users": {id: {...}}}); YAML with the same shape
// is accepted too. Timestamps without an offset are read in the configured
// location.
package legacy

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pathakanu/myAgenda/internal/model"
	"github.com/pathakanu/myAgenda/internal/store"
	"gopkg.in/yaml.v3"
)

// CurrentVersion is the document version produced by Upgrade.
const CurrentVersion = 2

// Document is the whole legacy store.
type Document struct {
	Version int              `yaml:"version,omitempty"`
	Users   map[string]*User `yaml:"users"`
}

// User holds one user's collections. LastAddedTask indexes Tasks.
type User struct {
	Tasks         []Task     `yaml:"tasks"`
	Reminders     []Reminder `yaml:"reminders"`
	Moods         []Mood     `yaml:"moods"`
	History       []History  `yaml:"history"`
	LastAddedTask *int       `yaml:"last_added_task"`
}

type Task struct {
	Title       string `yaml:"title"`
	Priority    int    `yaml:"priority"`
	Notes       string `yaml:"notes"`
	CreatedAt   string `yaml:"created_at"`
	Done        bool   `yaml:"done"`
	CompletedAt string `yaml:"completed_at"`
}

type Reminder struct {
	Title          string `yaml:"title"`
	RemindDatetime string `yaml:"remind_datetime"`
	CreatedAt      string `yaml:"created_at"`
	Reminded       bool   `yaml:"reminded"`
}

type Mood struct {
	TS    string  `yaml:"ts"`
	Score float64 `yaml:"score"`
	Text  string  `yaml:"text"`
}

// History.Raw is usually the message text but older entries stored
// structured values, so it is kept loosely typed.
type History struct {
	TS   string `yaml:"ts"`
	Type string `yaml:"type"`
	Raw  any    `yaml:"raw"`
}

// Options control conversion.
type Options struct {
	// Location applies to timestamps without an offset. Defaults to time.Local.
	Location *time.Location
	// Prefix is prepended to user ids that carry no channel prefix,
	// e.g. "tg:" for the Telegram chat ids of the original bot.
	Prefix string
}

// Summary reports what an import did.
type Summary struct {
	Users     int
	Upgraded  int
	Tasks     int
	Reminders int
	Skipped   int
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	time.DateOnly,
}

// Decode reads a legacy document.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return &Document{Users: map[string]*User{}}, nil
		}
		return nil, fmt.Errorf("legacy document parse error: %w", err)
	}
	if doc.Users == nil {
		doc.Users = map[string]*User{}
	}
	return &doc, nil
}

// Upgrade brings doc to CurrentVersion in place: users without a reminders
// collection (first releases) or with null entries get empty collections.
// It returns how many users changed.
func Upgrade(doc *Document) int {
	changed := 0
	for id, u := range doc.Users {
		touched := doc.Version < CurrentVersion
		if u == nil {
			u = &User{}
			doc.Users[id] = u
			touched = true
		}
		if u.Tasks == nil {
			u.Tasks = []Task{}
		}
		if u.Reminders == nil {
			u.Reminders = []Reminder{}
			touched = true
		}
		if u.Moods == nil {
			u.Moods = []Mood{}
		}
		if u.History == nil {
			u.History = []History{}
		}
		if touched {
			changed++
		}
	}
	doc.Version = CurrentVersion
	return changed
}

// Convert maps an upgraded document to store records, ordered by user id.
// Reminders already delivered by the old bot and reminders with an
// unreadable time are skipped and counted.
func Convert(doc *Document, opts Options) ([]store.ImportedUser, int, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	ids := make([]string, 0, len(doc.Users))
	for id := range doc.Users {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	users := make([]store.ImportedUser, 0, len(ids))
	skipped := 0
	for _, id := range ids {
		u := doc.Users[id]
		out := store.ImportedUser{ID: userID(id, opts.Prefix), LastAddedIndex: u.LastAddedTask}

		for _, t := range u.Tasks {
			task := model.Task{
				Title:     strings.TrimSpace(t.Title),
				Priority:  clampPriority(t.Priority),
				Notes:     t.Notes,
				Done:      t.Done,
				CreatedAt: parseTime(t.CreatedAt, loc),
			}
			if task.Title == "" {
				task.Title = "Task"
			}
			if at := parseTime(t.CompletedAt, loc); t.Done && !at.IsZero() {
				task.CompletedAt = &at
			}
			out.Tasks = append(out.Tasks, task)
		}

		for _, r := range u.Reminders {
			at := parseTime(r.RemindDatetime, loc)
			if r.Reminded || at.IsZero() {
				skipped++
				continue
			}
			out.Reminders = append(out.Reminders, model.Reminder{
				Title:     strings.TrimSpace(r.Title),
				RemindAt:  at.UTC(),
				CreatedAt: parseTime(r.CreatedAt, loc),
			})
		}

		for _, m := range u.Moods {
			out.Moods = append(out.Moods, model.Mood{
				Score:     m.Score,
				Text:      m.Text,
				CreatedAt: parseTime(m.TS, loc),
			})
		}

		for _, h := range u.History {
			out.History = append(out.History, model.HistoryEntry{
				Kind:      h.Type,
				Raw:       rawString(h.Raw),
				CreatedAt: parseTime(h.TS, loc),
			})
		}

		users = append(users, out)
	}
	return users, skipped, nil
}

// ImportFile decodes, upgrades and writes the document at path.
func ImportFile(ctx context.Context, st *store.Store, path string, opts Options) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, err
	}
	defer f.Close()
	return Import(ctx, st, f, opts)
}

// Import decodes, upgrades and writes a document in one transaction.
func Import(ctx context.Context, st *store.Store, r io.Reader, opts Options) (Summary, error) {
	doc, err := Decode(r)
	if err != nil {
		return Summary{}, err
	}
	upgraded := Upgrade(doc)

	users, skipped, err := Convert(doc, opts)
	if err != nil {
		return Summary{}, err
	}
	if err := st.Import(ctx, users); err != nil {
		return Summary{}, fmt.Errorf("write users: %w", err)
	}

	sum := Summary{Users: len(users), Upgraded: upgraded, Skipped: skipped}
	for _, u := range users {
		sum.Tasks += len(u.Tasks)
		sum.Reminders += len(u.Reminders)
	}
	return sum, nil
}

func userID(id, prefix string) string {
	id = strings.TrimSpace(id)
	if prefix == "" || strings.Contains(id, ":") {
		return id
	}
	return prefix + id
}

func parseTime(s string, loc *time.Location) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t
		}
	}
	return time.Time{}
}

func clampPriority(p int) model.Priority {
	switch {
	case p < int(model.PriorityNormal):
		return model.PriorityNormal
	case p > int(model.PriorityUrgent):
		return model.PriorityUrgent
	}
	return model.Priority(p)
}

func rawString(v any) string {
	switch raw := v.(type) {
	case nil:
		return ""
	case string:
		return raw
	default:
		b, err := yaml.Marshal(raw)
		if err != nil {
			return fmt.Sprint(raw)
		}
		return strings.TrimSpace(string(b))
	}
}
