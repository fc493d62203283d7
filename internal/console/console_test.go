package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
)

type scriptedLines struct {
	lines []string
	err   error
}

func (s *scriptedLines) Readline() (string, error) {
	if len(s.lines) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

type recordingReplier struct {
	mu   sync.Mutex
	seen []string
}

func (r *recordingReplier) Reply(_ context.Context, userID, text string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, userID+"|"+text)
	return "echo " + text
}

func TestRunPassesLinesToReplier(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	rep := &recordingReplier{}
	c := New("", rep, &out)

	err := c.Run(context.Background(), &scriptedLines{lines: []string{"buy milk", "  ", "/quit", "never sent"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"cli:local|/start", "cli:local|buy milk"}
	if strings.Join(rep.seen, ",") != strings.Join(want, ",") {
		t.Fatalf("seen = %v, want %v", rep.seen, want)
	}
	if !strings.Contains(out.String(), "buy milk") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestRunStopsOnReadError(t *testing.T) {
	t.Parallel()
	c := New("cli:me", &recordingReplier{}, io.Discard)

	boom := errors.New("tty gone")
	if err := c.Run(context.Background(), &scriptedLines{err: boom}); !errors.Is(err, boom) {
		t.Fatalf("Run error = %v, want %v", err, boom)
	}
	if err := c.Run(context.Background(), &scriptedLines{}); err != nil {
		t.Fatalf("EOF should end cleanly, got %v", err)
	}
}

func TestNotify(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	c := New("", &recordingReplier{}, &out)

	if err := c.Notify(context.Background(), "cli:local", "⏰ *Reminder:* stretch"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if !strings.Contains(out.String(), "stretch") {
		t.Fatalf("output = %q", out.String())
	}
	if err := c.Notify(context.Background(), "tg:1", "x"); err == nil {
		t.Fatalf("non-console user should be rejected")
	}
}

func TestChatBoldBecomesMarkdownBold(t *testing.T) {
	t.Parallel()

	got := chatBold.ReplaceAllString("Noted: *Pay rent* and **kept**", "$1**$2**")
	if got != "Noted: **Pay rent** and **kept**" {
		t.Fatalf("got %q", got)
	}
}
