package openai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// TaskExtraction is a task pulled out of free text.
type TaskExtraction struct {
	Title    string `json:"title"`
	Priority int    `json:"priority"`
	Notes    string `json:"notes"`
}

// ReminderExtraction is a reminder pulled out of free text. TimeExpression
// is the temporal phrase exactly as the user wrote it.
type ReminderExtraction struct {
	Title          string `json:"title"`
	TimeExpression string `json:"time_expression"`
	Notes          string `json:"notes"`
}

const (
	extractTaskSystem      = "You extract tasks from natural text. Reply with JSON only."
	extractTasksSystem     = "You extract several tasks from a text. Reply with a JSON array only."
	extractReminderSystem  = "You extract reminders from natural text. Reply with JSON only."
	extractRemindersSystem = "You extract several reminders from a text. Reply with a JSON array only."
)

const extractTaskPrompt = `Extract the task in this message:

%q

Reply with JSON only:
{"title": "<short actionable title>", "priority": <1-3, 3 = urgent>, "notes": "<extra details, if any>"}

Rules:
- no filler such as "remind me", "I have to", "today I need to"
- "urgent" or "asap" -> 3, "important" -> 2, otherwise 1`

const extractTasksPrompt = `The user wants to add SEVERAL tasks at once. Extract each one.

Text: %q

Reply with a JSON array only:
[{"title": "<task 1>", "priority": <1-3>}, {"title": "<task 2>", "priority": <1-3>}]

Rules:
- no list numbers (1., 2., ...) in titles
- every task is for today`

const extractReminderPrompt = `Extract the reminder in this message:

%q

Reply with JSON only:
{"title": "<what to remember>", "time_expression": "<the time phrase EXACTLY as written: 'in 5 minutes', 'at 15:30', 'tomorrow 10am'>", "notes": "<extra context, if any>"}

Rules:
- never include "remind me" in the title
- copy the time phrase verbatim`

const extractRemindersPrompt = `The user wants SEVERAL reminders. Extract each one.

Text: %q

Reply with a JSON array only:
[{"title": "<what to remember>", "time_expression": "<when>"}, {"title": "<what to remember>", "time_expression": "<when>"}]

Rules:
- never include "remind me" in titles
- copy every time phrase verbatim`

// ExtractTask pulls one task out of text.
func (c *Client) ExtractTask(ctx context.Context, text string) (TaskExtraction, error) {
	var out TaskExtraction
	err := c.extract(ctx, extractTaskSystem, fmt.Sprintf(extractTaskPrompt, text), 200, func(answer string) error {
		return decode(c.schemas.task, answer, &out)
	})
	out.Title = strings.TrimSpace(out.Title)
	return out, err
}

// ExtractTasks pulls every task out of a list-like message.
func (c *Client) ExtractTasks(ctx context.Context, text string) ([]TaskExtraction, error) {
	var out []TaskExtraction
	err := c.extract(ctx, extractTasksSystem, fmt.Sprintf(extractTasksPrompt, text), 600, func(answer string) error {
		return decode(c.schemas.tasks, answer, &out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ExtractReminder pulls one reminder out of text.
func (c *Client) ExtractReminder(ctx context.Context, text string) (ReminderExtraction, error) {
	var out ReminderExtraction
	err := c.extract(ctx, extractReminderSystem, fmt.Sprintf(extractReminderPrompt, text), 200, func(answer string) error {
		return decode(c.schemas.reminder, answer, &out)
	})
	return out, err
}

// ExtractReminders pulls every reminder out of a message.
func (c *Client) ExtractReminders(ctx context.Context, text string) ([]ReminderExtraction, error) {
	var out []ReminderExtraction
	err := c.extract(ctx, extractRemindersSystem, fmt.Sprintf(extractRemindersPrompt, text), 600, func(answer string) error {
		return decode(c.schemas.reminders, answer, &out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) extract(ctx context.Context, system, prompt string, maxTokens int64, parse func(string) error) error {
	if !c.Enabled() {
		return ErrClientNotInitialised
	}
	answer, err := c.complete(ctx, system, prompt, 0.1, maxTokens, 15*time.Second)
	if err != nil {
		return err
	}
	if err := parse(answer); err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	return nil
}
