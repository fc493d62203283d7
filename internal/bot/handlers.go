package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pathakanu/myAgenda/internal/matcher"
	"github.com/pathakanu/myAgenda/internal/model"
	myopenai "github.com/pathakanu/myAgenda/internal/openai"
	"github.com/pathakanu/myAgenda/internal/session"
	"github.com/pathakanu/myAgenda/internal/store"
	"github.com/pathakanu/myAgenda/internal/taskparse"
)

// refNoise strips command words from a reminder reference before matching.
var refNoise = regexp.MustCompile(`(?i)\b(delete|remove|cancel|reminders?|the|my|about|please|one)\b`)

// doneNoise strips completion words from a task reference before matching.
var doneNoise = regexp.MustCompile(`(?i)\b(done|did|finish(?:ed)?|complete(?:d)?|mark(?:ed)?|check(?:ed)?|tasks?|with|already|just|that|this|the|about)\b`)

func (b *Bot) fail(ctx context.Context, op string, err error) string {
	b.logger.Printf("[%s] %s: %v", traceID(ctx), op, err)
	return msgInternal
}

// logAssistantErr logs extractor failures except the expected one when no
// model is configured.
func (b *Bot) logAssistantErr(ctx context.Context, op string, err error) {
	if !errors.Is(err, myopenai.ErrClientNotInitialised) {
		b.logger.Printf("[%s] %s failed, using fallback parser: %v", traceID(ctx), op, err)
	}
}

func (b *Bot) taskDraft(ctx context.Context, text string) taskparse.Draft {
	ex, err := b.ai.ExtractTask(ctx, text)
	if err != nil || strings.TrimSpace(ex.Title) == "" {
		if err != nil {
			b.logAssistantErr(ctx, "extract task", err)
		}
		return taskparse.ParseFallback(text)
	}
	return taskparse.Draft{
		Title:    taskparse.Capitalize(strings.TrimSpace(ex.Title)),
		Priority: ex.Priority,
		Notes:    ex.Notes,
	}
}

func (b *Bot) addTask(ctx context.Context, userID, text string) string {
	t, err := b.store.AddTask(ctx, userID, b.taskDraft(ctx, text))
	if err != nil {
		return b.fail(ctx, "add task", err)
	}
	return fmt.Sprintf("Noted for today: *%s*%s", t.Title, priorityTag(t.Priority))
}

func (b *Bot) addTasks(ctx context.Context, userID, text string) string {
	var drafts []taskparse.Draft
	extracted, err := b.ai.ExtractTasks(ctx, text)
	if err != nil {
		b.logAssistantErr(ctx, "extract tasks", err)
	}
	for _, ex := range extracted {
		if title := strings.TrimSpace(ex.Title); title != "" {
			drafts = append(drafts, taskparse.Draft{Title: taskparse.Capitalize(title), Priority: ex.Priority, Notes: ex.Notes})
		}
	}
	if len(drafts) == 0 {
		drafts = taskparse.SplitItems(text)
	}
	if len(drafts) == 0 {
		return b.addTask(ctx, userID, text)
	}

	tasks, err := b.store.AddTasks(ctx, userID, drafts)
	if err != nil {
		return b.fail(ctx, "add tasks", err)
	}
	if len(tasks) == 1 {
		return fmt.Sprintf("✅ Done, added for today: *%s*", tasks[0].Title)
	}
	titles := make([]string, len(tasks))
	for i, t := range tasks {
		titles[i] = t.Title + priorityTag(t.Priority)
	}
	return fmt.Sprintf("✅ Added %d tasks for today:\n\n%s", len(tasks), numbered(titles))
}

func (b *Bot) listTasks(ctx context.Context, userID string, scope store.Scope) string {
	tasks, err := b.store.ListTasks(ctx, userID, scope)
	if err != nil {
		return b.fail(ctx, "list tasks", err)
	}
	return formatTaskList(tasks, scope)
}

func (b *Bot) suggestOrder(ctx context.Context, userID string) string {
	tasks, err := b.store.SuggestOrder(ctx, userID)
	if err != nil {
		return b.fail(ctx, "suggest order", err)
	}
	return formatOrder(tasks)
}

func (b *Bot) stats(ctx context.Context, userID string) string {
	st, err := b.store.Stats(ctx, userID)
	if err != nil {
		return b.fail(ctx, "stats", err)
	}
	return formatStats(st, b.store.Now())
}

func (b *Bot) today(ctx context.Context, userID string) string {
	sum, err := b.store.DaySummary(ctx, userID)
	if err != nil {
		return b.fail(ctx, "day summary", err)
	}
	return formatDay(sum)
}

func (b *Bot) markDone(ctx context.Context, userID string, positions []int) string {
	if len(positions) == 1 {
		t, err := b.store.MarkDoneByPendingIndex(ctx, userID, positions[0])
		switch {
		case errors.Is(err, store.ErrIndexOutOfRange):
			return msgTaskIndex
		case err != nil:
			return b.fail(ctx, "mark done", err)
		}
		msg := fmt.Sprintf("💪 Nice! Crossed off: *%s*", t.Title)
		if sum, err := b.store.DaySummary(ctx, userID); err == nil && sum.CompletedToday > 1 {
			msg += fmt.Sprintf("\n\nThat's %d tasks today. Unstoppable!", sum.CompletedToday)
		}
		return msg
	}

	res, err := b.store.MarkDoneByPendingIndices(ctx, userID, positions)
	if err != nil {
		return b.fail(ctx, "mark done", err)
	}
	var lines []string
	switch len(res.Completed) {
	case 0:
		if pending, err := b.store.ListTasks(ctx, userID, store.ScopePending); err == nil && len(pending) == 0 {
			return msgNoPending
		}
	case 1:
		lines = append(lines, fmt.Sprintf("✅ Marked: *%s*", res.Completed[0].Title))
	default:
		titles := make([]string, len(res.Completed))
		for i, t := range res.Completed {
			titles[i] = t.Title
		}
		lines = append(lines, fmt.Sprintf("✅ Marked %d tasks:", len(titles)), bulleted(titles))
	}
	if len(res.Invalid) > 0 {
		nums := make([]string, len(res.Invalid))
		for i, n := range res.Invalid {
			nums[i] = strconv.Itoa(n)
		}
		lines = append(lines, "⚠️ Invalid numbers: "+strings.Join(nums, ", "))
	}
	return strings.Join(lines, "\n")
}

// markDoneRef completes the task a free-text message points at: explicit
// positions first, then the pending title the words match, then
// "that"/"the last one", then the only pending task.
func (b *Bot) markDoneRef(ctx context.Context, userID, text string) string {
	if positions := referencedPositions(text); len(positions) > 0 {
		return b.markDone(ctx, userID, positions)
	}

	pending, err := b.store.ListTasks(ctx, userID, store.ScopePending)
	if err != nil {
		return b.fail(ctx, "list tasks", err)
	}
	if len(pending) == 0 {
		return msgNoPendingToMark
	}

	titles := make([]string, len(pending))
	for i, t := range pending {
		titles[i] = t.Title
	}
	switch res := matcher.Match(titles, doneNoise.ReplaceAllString(text, " ")); res.Kind {
	case matcher.Unique:
		return b.markDone(ctx, userID, []int{res.Index() + 1})
	case matcher.Ambiguous:
		amb := &store.AmbiguousMatchError{}
		for _, i := range res.Indices {
			amb.Candidates = append(amb.Candidates, titles[i])
			amb.Positions = append(amb.Positions, i+1)
		}
		return b.askWhich(userID, session.ActionMarkDone, amb, "")
	}

	if lastRefRegex.MatchString(text) {
		last, err := b.store.LastAddedTask(ctx, userID)
		if err != nil {
			return b.fail(ctx, "last added task", err)
		}
		if last != nil {
			for i, t := range pending {
				if t.ID == last.ID {
					return b.markDone(ctx, userID, []int{i + 1})
				}
			}
		}
	}
	if len(pending) == 1 {
		return b.markDone(ctx, userID, []int{1})
	}
	return msgWhichTask + formatTaskList(pending, store.ScopePending)
}

// referencedPositions returns the pending positions a message names
// outright: a bare list of numbers, "done 2", "task 3" or "#1". Numbers
// elsewhere in the text are not positions.
func referencedPositions(text string) []int {
	text = strings.TrimSpace(text)
	if bareNumbersRegex.MatchString(text) {
		return parseIndices(strings.Join(digitsRegex.FindAllString(text, -1), " "))
	}
	if m := doneRegex.FindStringSubmatch(text); m != nil {
		return parseIndices(m[1])
	}
	var nums []string
	for _, m := range taskNumberRegex.FindAllStringSubmatch(text, -1) {
		nums = append(nums, m[1])
	}
	return parseIndices(strings.Join(nums, " "))
}

func (b *Bot) markAllDone(ctx context.Context, userID string) string {
	tasks, err := b.store.MarkAllDone(ctx, userID)
	if err != nil {
		return b.fail(ctx, "mark all done", err)
	}
	switch len(tasks) {
	case 0:
		return msgNoPendingToMark
	case 1:
		return fmt.Sprintf("✅ Marked *%s* as done.", tasks[0].Title)
	default:
		return fmt.Sprintf("🎉 Amazing! Marked all %d tasks as done.\n\nTime to rest a bit 😌", len(tasks))
	}
}

func (b *Bot) reminderDraft(ctx context.Context, text string) store.ReminderDraft {
	ex, err := b.ai.ExtractReminder(ctx, text)
	if err != nil || strings.TrimSpace(ex.TimeExpression) == "" {
		if err != nil {
			b.logAssistantErr(ctx, "extract reminder", err)
		}
		return store.ReminderDraft{Title: taskparse.ParseFallback(text).Title, When: text}
	}
	title := strings.TrimSpace(ex.Title)
	if title != "" {
		title = taskparse.Capitalize(title)
	}
	return store.ReminderDraft{Title: title, When: ex.TimeExpression}
}

func (b *Bot) addReminder(ctx context.Context, userID, text string) string {
	d := b.reminderDraft(ctx, text)
	r, err := b.store.AddReminderText(ctx, userID, d.Title, d.When)
	if err != nil {
		return b.reminderError(ctx, "add reminder", err)
	}
	return fmt.Sprintf("Scheduled: *%s* for %s ✓", r.Title, friendlyTime(r.RemindAt, b.store.Now(), b.store.Location()))
}

func (b *Bot) addReminders(ctx context.Context, userID, text string) string {
	extracted, err := b.ai.ExtractReminders(ctx, text)
	if err != nil {
		b.logAssistantErr(ctx, "extract reminders", err)
	}
	var drafts []store.ReminderDraft
	for _, ex := range extracted {
		if strings.TrimSpace(ex.TimeExpression) != "" {
			drafts = append(drafts, store.ReminderDraft{Title: taskparse.Capitalize(strings.TrimSpace(ex.Title)), When: ex.TimeExpression})
		}
	}
	if len(drafts) == 0 {
		return b.addReminder(ctx, userID, text)
	}

	added, failed, err := b.store.AddReminders(ctx, userID, drafts)
	if err != nil {
		return b.fail(ctx, "add reminders", err)
	}
	if len(added) == 0 {
		return msgNoReminderCreated
	}
	now, loc := b.store.Now(), b.store.Location()
	items := make([]string, len(added))
	for i, r := range added {
		items[i] = fmt.Sprintf("%s (%s)", r.Title, friendlyTime(r.RemindAt, now, loc))
	}
	msg := fmt.Sprintf("✅ Scheduled %d %s:\n\n%s", len(added), plural(len(added), "reminder", "reminders"), numbered(items))
	if len(failed) > 0 {
		msg += "\n\n⚠️ Couldn't schedule: " + strings.Join(failed, ", ")
	}
	return msg
}

func (b *Bot) listReminders(ctx context.Context, userID string) string {
	reminders, err := b.store.ListReminders(ctx, userID)
	if err != nil {
		return b.fail(ctx, "list reminders", err)
	}
	return formatReminderList(reminders, b.store.Now(), b.store.Location())
}

func (b *Bot) deleteReminderAt(ctx context.Context, userID string, position int) string {
	r, err := b.store.DeleteReminderByIndex(ctx, userID, position)
	switch {
	case errors.Is(err, store.ErrIndexOutOfRange):
		return msgReminderIndex
	case err != nil:
		return b.fail(ctx, "delete reminder", err)
	}
	return fmt.Sprintf("Deleted the reminder: *%s*", r.Title)
}

// deleteReminderRef deletes by number, "all" or text match.
func (b *Bot) deleteReminderRef(ctx context.Context, userID, ref string) string {
	ref = strings.TrimSpace(ref)
	if n, err := strconv.Atoi(strings.TrimPrefix(ref, "#")); err == nil {
		return b.deleteReminderAt(ctx, userID, n)
	}
	if strings.EqualFold(ref, "all") {
		return b.deleteAllReminders(ctx, userID)
	}
	query := strings.TrimSpace(refNoise.ReplaceAllString(ref, " "))
	if query == "" {
		return msgDeleteWhich
	}

	r, err := b.store.DeleteReminderByText(ctx, userID, query)
	var amb *store.AmbiguousMatchError
	switch {
	case errors.As(err, &amb):
		return b.askWhich(userID, session.ActionDeleteReminder, amb, "")
	case errors.Is(err, store.ErrNotFound):
		if list, lerr := b.store.ListReminders(ctx, userID); lerr == nil && len(list) == 0 {
			return msgNoReminders
		}
		return msgReminderNotFound
	case err != nil:
		return b.fail(ctx, "delete reminder", err)
	}
	return fmt.Sprintf("Deleted the reminder: *%s*", r.Title)
}

func (b *Bot) deleteAllReminders(ctx context.Context, userID string) string {
	n, err := b.store.DeleteAllReminders(ctx, userID)
	if err != nil {
		return b.fail(ctx, "delete all reminders", err)
	}
	if n == 0 {
		return msgNoReminders
	}
	return fmt.Sprintf("Done, deleted %d %s.", n, plural(n, "reminder", "reminders"))
}

func (b *Bot) rescheduleReminder(ctx context.Context, userID, text string) string {
	r, err := b.store.RescheduleReminderByText(ctx, userID, text)
	var amb *store.AmbiguousMatchError
	if errors.As(err, &amb) {
		return b.askWhich(userID, session.ActionRescheduleReminder, amb, text)
	}
	if err != nil {
		return b.reminderError(ctx, "reschedule reminder", err)
	}
	return b.moved(r)
}

func (b *Bot) rescheduleReminderAt(ctx context.Context, userID string, position int, when string) string {
	r, err := b.store.RescheduleReminderByIndex(ctx, userID, position, when)
	if err != nil {
		return b.reminderError(ctx, "reschedule reminder", err)
	}
	return b.moved(r)
}

func (b *Bot) moved(r *model.Reminder) string {
	return fmt.Sprintf("Done, moved *%s* to %s.", r.Title, friendlyTime(r.RemindAt, b.store.Now(), b.store.Location()))
}

// reminderError maps reminder time and lookup errors to replies.
func (b *Bot) reminderError(ctx context.Context, op string, err error) string {
	var past *store.PastTimeError
	switch {
	case errors.Is(err, store.ErrParseFailure):
		return msgTimeNotUnderstood
	case errors.As(err, &past):
		return fmt.Sprintf("That time has already passed (%s). Try a time in the future 🙂",
			friendlyTime(past.At, b.store.Now(), b.store.Location()))
	case errors.Is(err, store.ErrNotFound):
		return msgNoReminders
	case errors.Is(err, store.ErrIndexOutOfRange):
		return msgReminderIndex
	default:
		return b.fail(ctx, op, err)
	}
}

// askWhich stores a clarification and lists the candidates to pick from.
func (b *Bot) askWhich(userID string, action session.Action, amb *store.AmbiguousMatchError, when string) string {
	b.sessions.SetPending(userID, session.Pending{Action: action, Positions: amb.Positions, When: when})
	noun := "reminders"
	if action == session.ActionMarkDone {
		noun = "tasks"
	}
	return fmt.Sprintf(msgSeveralMatch, noun, numbered(amb.Candidates))
}
