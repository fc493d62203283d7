package openai

import (
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

const (
	// historyTokenBudget caps the context block sent with a classification.
	historyTokenBudget = 400
	// historyTurns is the most turns ever considered.
	historyTurns = 5
	// turnChars truncates each turn before counting.
	turnChars = 100
)

// tokenizer counts tokens with tiktoken and falls back to a length heuristic
// when the encoding cannot be loaded (offline hosts have no BPE cache).
type tokenizer struct {
	encodingName string

	once    sync.Once
	mu      sync.Mutex
	encoder *tiktoken.Tiktoken
}

func newTokenizerForModel(model string) *tokenizer {
	m := strings.ToLower(model)
	name := "cl100k_base"
	if strings.HasPrefix(m, "gpt-4o") || strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3") || strings.HasPrefix(m, "gpt-4.1") {
		name = "o200k_base"
	}
	return &tokenizer{encodingName: name}
}

func (t *tokenizer) count(text string) int {
	if text == "" {
		return 0
	}
	if t == nil {
		return heuristicTokenCount(text)
	}
	t.once.Do(func() {
		if enc, err := tiktoken.GetEncoding(t.encodingName); err == nil {
			t.encoder = enc
		}
	})
	if t.encoder == nil {
		return heuristicTokenCount(text)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.encoder.Encode(text, nil, nil))
}

// heuristicTokenCount assumes roughly four characters per token.
func heuristicTokenCount(text string) int {
	n := (len([]rune(text)) + 3) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// Turn is one earlier interaction given to the classifier as context.
type Turn struct {
	Kind string
	Raw  string
}

// contextBlock renders the newest turns that fit in budget tokens, oldest
// first. Older turns are dropped first.
func contextBlock(t *tokenizer, turns []Turn, budget int) string {
	if len(turns) > historyTurns {
		turns = turns[len(turns)-historyTurns:]
	}

	var lines []string
	used := 0
	for i := len(turns) - 1; i >= 0; i-- {
		kind := turns[i].Kind
		if kind == "" {
			kind = "msg"
		}
		line := "- " + kind + ": " + truncate(turns[i].Raw, turnChars)
		cost := t.count(line)
		if used+cost > budget {
			break
		}
		used += cost
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return "No earlier context."
	}
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return strings.Join(lines, "\n")
}
