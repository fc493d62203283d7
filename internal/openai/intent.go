package openai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Intent represents the high-level action inferred from a user message.
type Intent string

const (
	IntentCreateTask     Intent = "create_task"
	IntentCreateReminder Intent = "create_reminder"
	IntentQueryTasks     Intent = "query_tasks"
	IntentQueryReminders Intent = "query_reminders"
	IntentQueryStats     Intent = "query_stats"
	IntentMarkDone       Intent = "mark_done"
	IntentMarkAllDone    Intent = "mark_all_done"
	IntentDeleteTask     Intent = "delete_task"
	IntentDeleteReminder Intent = "delete_reminder"
	IntentModifyReminder Intent = "modify_reminder"
	IntentChat           Intent = "chat"
	// IntentExpressEmotion means the user is telling how they feel.
	IntentExpressEmotion Intent = "express_emotion"
)

// Fields carries the optional data the classifier pulls out of a message.
type Fields struct {
	TaskTitle     string   `json:"task_title"`
	Datetime      string   `json:"datetime"`
	TaskReference string   `json:"task_reference"`
	MarkAll       bool     `json:"mark_all"`
	Emotion       string   `json:"emotion"`
	MoodScore     *float64 `json:"mood_score"`
	QueryScope    string   `json:"query_scope"`
}

// Classification is the classifier verdict for one message.
type Classification struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Fields     Fields  `json:"extracted_data"`
}

// Neutral is the verdict used whenever classification fails.
func Neutral() Classification {
	return Classification{Intent: IntentChat, Confidence: 0.3}
}

const classifySystemPrompt = "You classify messages sent to a personal agenda assistant. Reply with JSON only."

const classifyPrompt = `Work out the main intent of this message.

Recent context:
%s

Message: %q

Reply with JSON only:
{
  "intent": "<one of: create_task, create_reminder, query_tasks, query_reminders, query_stats, mark_done, mark_all_done, delete_task, delete_reminder, modify_reminder, chat, express_emotion>",
  "confidence": <0.0 to 1.0>,
  "extracted_data": {
    "task_title": "<clean title when it is a task>",
    "datetime": "<any date or time mentioned>",
    "task_reference": "<'the last one', 'that', 'all', ... when referenced>",
    "mark_all": <true when every task is done>,
    "emotion": "<emotion expressed, if any>",
    "mood_score": <-1.0 to 1.0 when a feeling is expressed, else null>,
    "query_scope": "<for task questions: pending, all or completed>"
  }
}

Rules:
- "remind me", "ping me", "don't let me forget" plus a specific time -> create_reminder
- something to do today without asking for a ping -> create_task
- questions about completed work, productivity or statistics -> query_stats
- questions about reminders -> query_reminders
- removing a reminder -> delete_reminder
- moving or rescheduling a reminder -> modify_reminder
- "I did everything", "mark them all" -> mark_all_done

Examples:
"today I have to: 1- buy bread 2- study" -> create_task
"remind me to call in 5 minutes" -> create_reminder
"what do I have today?" -> query_tasks
"how many tasks did I finish today?" -> query_stats
"done with it" -> mark_done
"move the dentist reminder to tomorrow at 10" -> modify_reminder`

// ClassifyIntent asks the model for the intent of text given recent turns.
// On any failure it returns Neutral together with the error.
func (c *Client) ClassifyIntent(ctx context.Context, text string, history []Turn) (Classification, error) {
	if strings.TrimSpace(text) == "" {
		return Neutral(), fmt.Errorf("content cannot be empty")
	}
	if !c.Enabled() {
		return Neutral(), ErrClientNotInitialised
	}

	prompt := fmt.Sprintf(classifyPrompt, contextBlock(c.tokenizer, history, historyTokenBudget), text)
	answer, err := c.complete(ctx, classifySystemPrompt, prompt, 0.2, 300, 10*time.Second)
	if err != nil {
		return Neutral(), err
	}
	return parseClassification(c.schemas, answer)
}

func parseClassification(s *schemas, answer string) (Classification, error) {
	var out Classification
	if err := decode(s.classification, answer, &out); err != nil {
		return Neutral(), fmt.Errorf("classify intent: %w", err)
	}
	return out, nil
}
