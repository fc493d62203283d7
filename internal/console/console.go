// Package console is the local terminal transport: it reads lines, passes
// them to the bot and renders replies and reminders as markdown.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"
)

// UserPrefix marks user ids that belong to the console.
const UserPrefix = "cli:"

// DefaultUser is the id of the single local user.
const DefaultUser = UserPrefix + "local"

var (
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Bold(true)
	reminderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("215")).
			Padding(0, 1)
	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Single asterisks are chat-app bold; markdown reads them as emphasis.
var chatBold = regexp.MustCompile(`(^|[^*])\*([^*\n]+)\*`)

// Replier answers one message.
type Replier interface {
	Reply(ctx context.Context, userID, text string) string
}

// LineReader is satisfied by *readline.Instance.
type LineReader interface {
	Readline() (string, error)
}

// Console renders bot output on a terminal.
type Console struct {
	userID   string
	replier  Replier
	out      io.Writer
	mu       sync.Mutex
	renderer *glamour.TermRenderer
}

// New creates a console writing to out. Output stays plain text when the
// markdown renderer cannot be built.
func New(userID string, replier Replier, out io.Writer) *Console {
	switch {
	case userID == "":
		userID = DefaultUser
	case !strings.HasPrefix(userID, UserPrefix):
		userID = UserPrefix + userID
	}
	c := &Console{userID: userID, replier: replier, out: out}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err == nil {
		c.renderer = r
	}
	return c
}

// NewReadline creates the interactive line editor used by the REPL.
func NewReadline() (*readline.Instance, error) {
	return readline.NewEx(&readline.Config{
		Prompt:              promptStyle.Render("you> "),
		InterruptPrompt:     "^C",
		EOFPrompt:           "exit",
		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
}

func filterInput(r rune) (rune, bool) {
	if r == readline.CharCtrlZ {
		return r, false
	}
	return r, true
}

// Run reads lines until EOF, interrupt, /quit or ctx is done.
func (c *Console) Run(ctx context.Context, lines LineReader) error {
	c.print(dimStyle.Render("Type /help for commands, /quit to leave."))
	c.print(c.render(c.replier.Reply(ctx, c.userID, "/start")))

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := lines.Readline()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		line = strings.TrimSpace(line)
		switch strings.ToLower(line) {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		}
		c.print(c.render(c.replier.Reply(ctx, c.userID, line)))
	}
}

// Notify prints a scheduled message. It implements bot.Notifier for
// console user ids.
func (c *Console) Notify(_ context.Context, userID, text string) error {
	if !strings.HasPrefix(userID, UserPrefix) {
		return fmt.Errorf("console: not a console user: %q", userID)
	}
	c.print(reminderStyle.Render(c.render(text)))
	return nil
}

func (c *Console) render(text string) string {
	md := chatBold.ReplaceAllString(text, "$1**$2**")
	if c.renderer == nil {
		return text
	}
	out, err := c.renderer.Render(md)
	if err != nil {
		return text
	}
	return strings.TrimSpace(out)
}

func (c *Console) print(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, s)
}
