package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pathakanu/myAgenda/internal/model"
	myopenai "github.com/pathakanu/myAgenda/internal/openai"
	"github.com/pathakanu/myAgenda/internal/session"
	"github.com/pathakanu/myAgenda/internal/store"
	"github.com/pathakanu/myAgenda/internal/taskparse"
)

const historyTurns = 5

var (
	doneRegex        = regexp.MustCompile(`(?i)^(?:done|did|finished|completed|check(?:ed)?)\s*#?\s*(\d[\d,\s]*)[.!]*$`)
	allDoneRegex     = regexp.MustCompile(`(?i)^(?:all done|done with (?:everything|all)|i did (?:everything|it all)|finished everything|mark (?:them |everything )?all(?: as)? done)[.!]*$`)
	listTasksRegex   = regexp.MustCompile(`(?i)^(?:tasks|my tasks|list(?: my)? tasks|show(?: me)?(?: my)? tasks|what do i have(?: to do)?(?: today)?)\??$`)
	deleteRemRegex   = regexp.MustCompile(`(?i)^(?:delete|remove|cancel)\s+(?:the\s+|my\s+)?reminders?\b(?:\s+(?:about|for|to|of))?\s*(.*)$`)
	bareNumbersRegex = regexp.MustCompile(`^#?\d+(?:\s*(?:,|\s|and)\s*#?\d+)*[.!]*$`)
	digitsRegex      = regexp.MustCompile(`\d+`)
	taskNumberRegex  = regexp.MustCompile(`(?i)(?:\b(?:task|number|item|no\.?)\s*#?|#)(\d+)\b`)
	lastRefRegex     = regexp.MustCompile(`(?i)\b(last|that|it|this one|the one)\b`)
	reminderCue      = regexp.MustCompile(`(?i)\b(remind me|ping me|alert me|don'?t let me forget)\b`)
	rescheduleCue    = regexp.MustCompile(`(?i)^(?:move|reschedule|postpone|push|change)\b`)
	taskCue          = regexp.MustCompile(`(?i)^(?:todo|to do|task|add)\b|\b(?:i have to|i need to|i must|i've got to|i gotta|i should)\b`)
	statsCue         = regexp.MustCompile(`(?i)\b(stats|statistics|how many|productiv)`)
	reminderListCue  = regexp.MustCompile(`(?i)\b(list|show|what are)\b.*\breminders?\b`)
)

// Reply produces the answer to one inbound message from userID. It never
// fails: collaborator and store errors are logged and mapped to fixed
// replies.
func (b *Bot) Reply(ctx context.Context, userID, text string) string {
	text = strings.TrimSpace(text)
	if userID == "" || text == "" {
		return msgEmptyMessage
	}
	ctx = withTraceID(ctx, newTraceID())

	greet := b.sessions.Touch(userID)
	if isCommand(text, "/start") {
		if greet == session.GreetFirst {
			return msgWelcome
		}
		return msgStartAgain
	}

	reply := b.route(ctx, userID, text)
	switch greet {
	case session.GreetFirst:
		return msgFirstGreeting + "\n\n" + reply
	case session.GreetAgain:
		return msgGreeting + "\n\n" + reply
	}
	return reply
}

func (b *Bot) route(ctx context.Context, userID, text string) string {
	if reply, ok := b.answerPending(ctx, userID, text); ok {
		return reply
	}
	if strings.HasPrefix(text, "/") {
		return b.command(ctx, userID, text)
	}
	if reply, ok := b.heuristics(ctx, userID, text); ok {
		return reply
	}

	c := b.classify(ctx, userID, text)
	if c.Fields.MoodScore != nil {
		if err := b.store.RecordMood(ctx, userID, *c.Fields.MoodScore, text); err != nil {
			b.logger.Printf("[%s] record mood for %s: %v", traceID(ctx), userID, err)
		}
	}
	return b.dispatch(ctx, userID, text, c)
}

func (b *Bot) command(ctx context.Context, userID, text string) string {
	fields := strings.Fields(text)
	name := strings.ToLower(fields[0])
	if i := strings.IndexByte(name, '@'); i > 0 {
		name = name[:i]
	}
	args := strings.TrimSpace(strings.TrimPrefix(text, fields[0]))

	switch name {
	case "/help":
		return msgHelp
	case "/tasks":
		return b.listTasks(ctx, userID, store.ParseScope(args))
	case "/today":
		return b.today(ctx, userID)
	case "/stats":
		return b.stats(ctx, userID)
	case "/reminders":
		return b.listReminders(ctx, userID)
	case "/order":
		return b.suggestOrder(ctx, userID)
	case "/done":
		indices := parseIndices(args)
		if len(indices) == 0 {
			return msgDoneUsage
		}
		return b.markDone(ctx, userID, indices)
	case "/delete_reminder":
		if strings.EqualFold(args, "all") {
			return b.deleteAllReminders(ctx, userID)
		}
		indices := parseIndices(args)
		if len(indices) != 1 {
			return msgDeleteReminderUsage
		}
		return b.deleteReminderAt(ctx, userID, indices[0])
	default:
		return msgUnknownCmd
	}
}

// heuristics answers the phrasings that need no classifier.
func (b *Bot) heuristics(ctx context.Context, userID, text string) (string, bool) {
	lower := strings.ToLower(text)

	switch {
	case isClearAllRequest(lower):
		return b.deleteAllReminders(ctx, userID), true
	case isListRequest(lower):
		return b.listReminders(ctx, userID), true
	case allDoneRegex.MatchString(text):
		return b.markAllDone(ctx, userID), true
	case listTasksRegex.MatchString(text):
		return b.listTasks(ctx, userID, store.ScopePending), true
	}

	if m := doneRegex.FindStringSubmatch(text); m != nil {
		if indices := parseIndices(m[1]); len(indices) > 0 {
			return b.markDone(ctx, userID, indices), true
		}
	}
	if m := deleteRemRegex.FindStringSubmatch(text); m != nil {
		return b.deleteReminderRef(ctx, userID, strings.TrimSpace(m[1])), true
	}
	return "", false
}

func (b *Bot) classify(ctx context.Context, userID, text string) myopenai.Classification {
	var turns []myopenai.Turn
	entries, err := b.store.RecentHistory(ctx, userID, historyTurns)
	if err != nil {
		b.logger.Printf("[%s] recent history for %s: %v", traceID(ctx), userID, err)
	}
	for _, e := range entries {
		turns = append(turns, myopenai.Turn{Kind: e.Kind, Raw: e.Raw})
	}

	c, err := b.ai.ClassifyIntent(ctx, text, turns)
	if err != nil {
		if errors.Is(err, myopenai.ErrClientNotInitialised) {
			return guessIntent(text)
		}
		b.logger.Printf("[%s] intent classification error: %v", traceID(ctx), err)
		return myopenai.Neutral()
	}
	return c
}

func (b *Bot) dispatch(ctx context.Context, userID, text string, c myopenai.Classification) string {
	switch c.Intent {
	case myopenai.IntentCreateTask, myopenai.IntentCreateReminder:
		if c.Confidence < b.cfg.MinConfidence {
			b.rememberMessage(ctx, userID, text)
			return msgFallback
		}
		multiple := taskparse.DetectMultiple(text)
		switch {
		case c.Intent == myopenai.IntentCreateTask && multiple:
			return b.addTasks(ctx, userID, text)
		case c.Intent == myopenai.IntentCreateTask:
			return b.addTask(ctx, userID, text)
		case multiple:
			return b.addReminders(ctx, userID, text)
		default:
			return b.addReminder(ctx, userID, text)
		}
	case myopenai.IntentQueryTasks:
		return b.listTasks(ctx, userID, store.ParseScope(c.Fields.QueryScope))
	case myopenai.IntentQueryReminders:
		return b.listReminders(ctx, userID)
	case myopenai.IntentQueryStats:
		return b.stats(ctx, userID)
	case myopenai.IntentMarkDone:
		if c.Fields.MarkAll {
			return b.markAllDone(ctx, userID)
		}
		return b.markDoneRef(ctx, userID, text)
	case myopenai.IntentMarkAllDone:
		return b.markAllDone(ctx, userID)
	case myopenai.IntentDeleteTask:
		return msgTasksCantBeDeleted
	case myopenai.IntentDeleteReminder:
		ref := c.Fields.TaskReference
		if ref == "" {
			ref = text
		}
		return b.deleteReminderRef(ctx, userID, ref)
	case myopenai.IntentModifyReminder:
		return b.rescheduleReminder(ctx, userID, text)
	case myopenai.IntentExpressEmotion:
		b.rememberMessage(ctx, userID, text)
		bucket := "neutral"
		if c.Fields.MoodScore != nil {
			bucket = model.Bucket(*c.Fields.MoodScore)
		}
		return moodReply(bucket)
	default:
		b.rememberMessage(ctx, userID, text)
		return msgFallback
	}
}

// answerPending consumes a numeric answer to an earlier clarification.
// Any other text drops the question and is routed normally.
func (b *Bot) answerPending(ctx context.Context, userID, text string) (string, bool) {
	if !b.sessions.HasPending(userID) {
		return "", false
	}
	choice, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(text), "#"))
	p, ok := b.sessions.PopPending(userID)
	if err != nil || !ok {
		return "", false
	}
	if choice < 1 || choice > len(p.Positions) {
		b.sessions.SetPending(userID, p)
		return fmt.Sprintf(msgPickNumber, len(p.Positions)), true
	}

	position := p.Positions[choice-1]
	switch p.Action {
	case session.ActionDeleteReminder:
		return b.deleteReminderAt(ctx, userID, position), true
	case session.ActionRescheduleReminder:
		return b.rescheduleReminderAt(ctx, userID, position, p.When), true
	case session.ActionMarkDone:
		return b.markDone(ctx, userID, []int{position}), true
	default:
		return "", false
	}
}

func (b *Bot) rememberMessage(ctx context.Context, userID, text string) {
	if err := b.store.AppendHistory(ctx, userID, model.HistoryMessage, text); err != nil {
		b.logger.Printf("[%s] append history for %s: %v", traceID(ctx), userID, err)
	}
}

// guessIntent is the keyword classifier used when no language model is
// configured.
func guessIntent(text string) myopenai.Classification {
	c := myopenai.Classification{Confidence: 0.7}
	switch {
	case rescheduleCue.MatchString(text):
		c.Intent = myopenai.IntentModifyReminder
	case reminderCue.MatchString(text):
		c.Intent = myopenai.IntentCreateReminder
	case reminderListCue.MatchString(text):
		c.Intent = myopenai.IntentQueryReminders
	case statsCue.MatchString(text):
		c.Intent = myopenai.IntentQueryStats
	case taskCue.MatchString(text), taskparse.DetectMultiple(text):
		c.Intent = myopenai.IntentCreateTask
	default:
		return myopenai.Neutral()
	}
	return c
}

func isCommand(text, name string) bool {
	first := strings.ToLower(strings.Fields(text)[0])
	if i := strings.IndexByte(first, '@'); i > 0 {
		first = first[:i]
	}
	return first == name
}

func isListRequest(body string) bool {
	return strings.Contains(body, "show my reminders") ||
		strings.Contains(body, "list my reminders") ||
		strings.Contains(body, "show reminders") ||
		strings.Contains(body, "list reminders") ||
		body == "reminders" ||
		body == "my reminders"
}

func isClearAllRequest(body string) bool {
	body = strings.TrimRight(body, ".!")
	return body == "clear all reminders" ||
		body == "clear reminders" ||
		body == "delete all reminders" ||
		body == "delete all my reminders"
}

// parseIndices reads 1-based positions separated by commas or spaces.
// Any token that is not a positive integer invalidates the whole input.
func parseIndices(s string) []int {
	tokens := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	if len(tokens) == 0 {
		return nil
	}
	out := make([]int, 0, len(tokens))
	for _, tok := range tokens {
		n, err := strconv.Atoi(tok)
		if err != nil || n < 1 {
			return nil
		}
		out = append(out, n)
	}
	return out
}
