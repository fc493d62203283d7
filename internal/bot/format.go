package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pathakanu/myAgenda/internal/model"
	"github.com/pathakanu/myAgenda/internal/store"
)

// Fixed replies. Formatting is limited to *bold*, which WhatsApp and
// Telegram Markdown both render.
const (
	msgWelcome = "Hi! I'm your agenda assistant ✨\n" +
		"Tell me what you need to get done today, or ask me to remind you of something."
	msgStartAgain    = "How can I help? 😊"
	msgGreeting      = "Hi again! 👋"
	msgFirstGreeting = "Hi! 👋 I'm your agenda assistant."
	msgEmptyMessage  = "I need a message to work with. Please try again."
	msgFallback      = "I'm not sure what to do with that. Tell me a task for today or ask me to remind you of something. Send /help to see more."
	msgInternal      = "Something went wrong on my side. Please try again in a moment."
	msgUnknownCmd    = "I don't know that command. Send /help to see what I can do."

	msgDoneUsage           = "Tell me which task: /done N (or /done 1,3)."
	msgDeleteReminderUsage = "Tell me which reminder: /delete_reminder N (see /reminders)."
	msgDeleteWhich         = "Tell me which reminder to delete, e.g. 'delete reminder about milk' or /delete_reminder 2."
	msgTaskIndex           = "That number doesn't exist. Send /tasks to see the list."
	msgReminderIndex       = "That number doesn't exist. Send /reminders to see the list."
	msgNoPending           = "You have no pending tasks."
	msgNoPendingToMark     = "You have no pending tasks to mark 🤔"
	msgNoPendingToOrder    = "No pending tasks today to put in order 🙂"
	msgNoReminders         = "You have no scheduled reminders."
	msgReminderNotFound    = "I couldn't find a reminder matching that. Send /reminders to see the list."
	msgTimeNotUnderstood   = "I couldn't work out the time. Try 'in 5 minutes', 'at 15:30' or 'tomorrow at 9am'."
	msgNoReminderCreated   = "I couldn't create any reminder. Check the dates and times."
	msgTasksCantBeDeleted  = "Tasks stay on your list until they're done. Mark one with /done N."
	msgWhichTask           = "Which task did you finish? Reply with /done N.\n\n"
	msgPickNumber          = "Please reply with a number between 1 and %d."
	msgSeveralMatch        = "I found several %s that match:\n\n%s\n\nReply with the number of the one you mean."
)

const msgHelp = "*Here's what I can do*\n\n" +
	"• Tell me tasks: \"I have to call mom\", \"today: 1- bread 2- gym\"\n" +
	"• Ask for reminders: \"remind me to stretch in 20 minutes\"\n" +
	"• Move reminders: \"move the dentist reminder to tomorrow at 10\"\n" +
	"• \"done 1 3\" or \"all done\" to tick tasks off\n\n" +
	"*Commands*\n" +
	"/tasks [all|completed] list tasks\n" +
	"/done N[,M] mark tasks done\n" +
	"/order suggest an order\n" +
	"/reminders list reminders\n" +
	"/delete_reminder N delete a reminder\n" +
	"/today how today went\n" +
	"/stats your numbers"

// friendlyTime renders t relative to now in loc: "today at 15:04",
// "tomorrow at 09:00" or "Mon 2 Jan at 15:04".
func friendlyTime(t, now time.Time, loc *time.Location) string {
	t = t.In(loc)
	now = now.In(loc)
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)
	switch day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc); {
	case day.Equal(today):
		return "today at " + t.Format("15:04")
	case day.Equal(today.AddDate(0, 0, 1)):
		return "tomorrow at " + t.Format("15:04")
	case t.Year() != now.Year():
		return t.Format("Mon 2 Jan 2006 at 15:04")
	default:
		return t.Format("Mon 2 Jan at 15:04")
	}
}

func priorityTag(p model.Priority) string {
	if label := p.Label(); label != "" {
		return " (" + label + ")"
	}
	return ""
}

func numbered(items []string) string {
	var sb strings.Builder
	for i, item := range items {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "  %d. %s", i+1, item)
	}
	return sb.String()
}

func bulleted(items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "  • " + item
	}
	return strings.Join(lines, "\n")
}

func formatTaskList(tasks []model.Task, scope store.Scope) string {
	if len(tasks) == 0 {
		switch scope {
		case store.ScopeCompleted:
			return "No completed tasks yet."
		case store.ScopeAll:
			return "You have no tasks yet."
		default:
			return "No pending tasks today 🎉"
		}
	}

	var sb strings.Builder
	switch scope {
	case store.ScopeCompleted:
		sb.WriteString("*Completed tasks:*\n")
	case store.ScopeAll:
		sb.WriteString("*All tasks:*\n")
	default:
		sb.WriteString("*Your tasks for today:*\n")
	}
	for i, t := range tasks {
		status := ""
		if scope == store.ScopeAll {
			status = "⬜ "
			if t.Done {
				status = "✅ "
			}
		}
		fmt.Fprintf(&sb, "\n%d. %s%s%s", i+1, status, t.Title, priorityTag(t.Priority))
	}
	if scope == store.ScopePending {
		sb.WriteString("\n\nSend /done N when you finish one.")
	}
	return sb.String()
}

func formatOrder(tasks []model.Task) string {
	if len(tasks) == 0 {
		return msgNoPendingToOrder
	}
	var sb strings.Builder
	sb.WriteString("*Suggested order:*\n")
	for i, t := range tasks {
		fmt.Fprintf(&sb, "\n%d. %s%s", i+1, t.Title, priorityTag(t.Priority))
	}
	return sb.String()
}

func formatReminderList(reminders []model.Reminder, now time.Time, loc *time.Location) string {
	if len(reminders) == 0 {
		return msgNoReminders
	}
	var sb strings.Builder
	sb.WriteString("*Your reminders:*\n")
	for i, r := range reminders {
		fmt.Fprintf(&sb, "\n%d. *%s*\n   ⏰ %s", i+1, r.Title, friendlyTime(r.RemindAt, now, loc))
	}
	return sb.String()
}

func formatStats(st store.Stats, now time.Time) string {
	lines := []string{
		"📊 *Your stats*",
		"",
		"🎯 Total tasks: " + strconv.Itoa(st.Total),
		"✅ Completed: " + strconv.Itoa(st.Completed),
		"⏳ Pending: " + strconv.Itoa(st.Pending),
		"",
		fmt.Sprintf("*Today (%s):*", now.Format("02/01")),
		fmt.Sprintf("✓ Completed: %d %s", st.CompletedToday, plural(st.CompletedToday, "task", "tasks")),
	}
	if st.UrgentPending > 0 {
		lines = append(lines, fmt.Sprintf("⚠️ Urgent pending: %d", st.UrgentPending))
	}
	if st.Total > 0 {
		rate := float64(st.Completed) / float64(st.Total) * 100
		lines = append(lines, "", fmt.Sprintf("💪 Completion rate: %.1f%%", rate))
	}
	if st.ActiveDays > 0 {
		lines = append(lines, fmt.Sprintf("🔥 Active days: %d", st.ActiveDays))
	}
	return strings.Join(lines, "\n")
}

func formatDay(sum store.DaySummary) string {
	mood := sum.Mood
	if mood == "" {
		mood = "no reading yet"
	}
	lines := []string{
		"*How today is going*",
		"",
		"Mood: " + mood,
		fmt.Sprintf("Completed: %d %s", sum.CompletedToday, plural(sum.CompletedToday, "task", "tasks")),
		fmt.Sprintf("Still to do: %d", sum.Pending),
	}
	switch {
	case sum.Pending == 0 && sum.CompletedToday > 0:
		lines = append(lines, "", "Everything done. Enjoy the rest of the day 🎉")
	case sum.CompletedToday > 0:
		lines = append(lines, "", "Good progress. One more? 💪")
	case sum.Pending > 0:
		lines = append(lines, "", "Pick the smallest one and start there. /order can help.")
	}
	return strings.Join(lines, "\n")
}

func moodReply(bucket string) string {
	switch bucket {
	case "positive":
		return "Love that energy! 🙌 Want to knock out a task while you're at it?"
	case "negative":
		return "Sorry it's a rough moment 💛 One small step at a time. /tasks shows what's left, no pressure."
	default:
		return "Thanks for telling me. I'm here if you want to plan something."
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
