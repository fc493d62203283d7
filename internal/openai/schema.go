package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const classificationSchema = `{
  "type": "object",
  "required": ["intent", "confidence"],
  "properties": {
    "intent": {"type": "string", "enum": [
      "create_task", "create_reminder", "query_tasks", "query_reminders",
      "query_stats", "mark_done", "mark_all_done", "delete_task",
      "delete_reminder", "modify_reminder", "chat", "express_emotion"
    ]},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "extracted_data": {
      "type": ["object", "null"],
      "properties": {
        "mark_all": {"type": ["boolean", "null"]},
        "mood_score": {"type": ["number", "null"], "minimum": -1, "maximum": 1}
      }
    }
  }
}`

const taskSchema = `{
  "type": "object",
  "required": ["title"],
  "properties": {
    "title": {"type": "string", "minLength": 1},
    "priority": {"type": ["integer", "null"]},
    "notes": {"type": ["string", "null"]}
  }
}`

const reminderSchema = `{
  "type": "object",
  "required": ["title"],
  "properties": {
    "title": {"type": "string", "minLength": 1},
    "time_expression": {"type": ["string", "null"]},
    "notes": {"type": ["string", "null"]}
  }
}`

// schemas holds the compiled validators for every model answer.
type schemas struct {
	classification *jsonschema.Schema
	task           *jsonschema.Schema
	tasks          *jsonschema.Schema
	reminder       *jsonschema.Schema
	reminders      *jsonschema.Schema
}

func mustCompileSchemas() *schemas {
	return &schemas{
		classification: mustCompile("classification.json", classificationSchema),
		task:           mustCompile("task.json", taskSchema),
		tasks:          mustCompile("tasks.json", arrayOf(taskSchema)),
		reminder:       mustCompile("reminder.json", reminderSchema),
		reminders:      mustCompile("reminders.json", arrayOf(reminderSchema)),
	}
}

func arrayOf(item string) string {
	return `{"type": "array", "items": ` + item + `}`
}

func mustCompile(name, schemaJSON string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("unmarshal schema %s: %v", name, err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("add schema resource %s: %v", name, err))
	}
	schema, err := c.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return schema
}

// decode extracts the JSON value from a model answer, validates it against
// schema and unmarshals it into out.
func decode(schema *jsonschema.Schema, answer string, out any) error {
	raw := extractJSON(answer)
	if raw == "" {
		return fmt.Errorf("answer does not contain JSON: %q", truncate(answer, 80))
	}

	parsed, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := schema.Validate(parsed); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decode answer: %w", err)
	}
	return nil
}

// extractJSON finds a JSON object or array in text, looking inside code
// fences first.
func extractJSON(text string) string {
	if idx := strings.Index(text, "```"); idx >= 0 {
		start := idx + 3
		if strings.HasPrefix(text[start:], "json") {
			start += 4
		}
		if end := strings.Index(text[start:], "```"); end >= 0 {
			if candidate := strings.TrimSpace(text[start : start+end]); json.Valid([]byte(candidate)) {
				return candidate
			}
		}
	}

	for i := 0; i < len(text); i++ {
		if text[i] == '{' || text[i] == '[' {
			if candidate := extractBalanced(text[i:]); candidate != "" && json.Valid([]byte(candidate)) {
				return candidate
			}
		}
	}
	return ""
}

// extractBalanced returns the bracketed value at the start of s, honouring
// string literals.
func extractBalanced(s string) string {
	open := s[0]
	var close byte
	switch open {
	case '{':
		close = '}'
	case '[':
		close = ']'
	default:
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == open:
			depth++
		case ch == close:
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
