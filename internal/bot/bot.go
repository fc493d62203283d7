package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/pathakanu/myAgenda/internal/config"
	myopenai "github.com/pathakanu/myAgenda/internal/openai"
	"github.com/pathakanu/myAgenda/internal/session"
	"github.com/pathakanu/myAgenda/internal/store"
	"github.com/robfig/cron/v3"
)

// DefaultMinConfidence is the classifier confidence below which creation
// intents are not acted on.
const DefaultMinConfidence = 0.6

// Assistant is the language model side of the bot: intent classification
// and structured extraction. *openai.Client implements it.
type Assistant interface {
	ClassifyIntent(ctx context.Context, text string, history []myopenai.Turn) (myopenai.Classification, error)
	ExtractTask(ctx context.Context, text string) (myopenai.TaskExtraction, error)
	ExtractTasks(ctx context.Context, text string) ([]myopenai.TaskExtraction, error)
	ExtractReminder(ctx context.Context, text string) (myopenai.ReminderExtraction, error)
	ExtractReminders(ctx context.Context, text string) ([]myopenai.ReminderExtraction, error)
}

// Notifier delivers an unsolicited message to a user.
type Notifier interface {
	Notify(ctx context.Context, userID, text string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, userID, text string) error

func (f NotifierFunc) Notify(ctx context.Context, userID, text string) error {
	return f(ctx, userID, text)
}

var errNoNotifier = errors.New("no notifier registered for user")

// Bot coordinates the agenda store, the assistant, delivery and scheduling.
type Bot struct {
	cfg      *config.Config
	store    *store.Store
	ai       Assistant
	sessions *session.Store
	cron     *cron.Cron
	logger   *log.Logger

	mu        sync.RWMutex
	notifiers map[string]Notifier
}

// New creates a Bot. A nil assistant or session store is replaced by an
// inert default so the bot still answers commands and heuristics.
func New(cfg *config.Config, st *store.Store, ai Assistant, sessions *session.Store, logger *log.Logger) *Bot {
	if cfg == nil {
		cfg = &config.Config{MinConfidence: DefaultMinConfidence}
	}
	if ai == nil {
		ai = myopenai.New("")
	}
	if sessions == nil {
		sessions = session.New(session.DefaultSize, session.DefaultTTL)
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Bot{
		cfg:       cfg,
		store:     st,
		ai:        ai,
		sessions:  sessions,
		logger:    logger,
		notifiers: make(map[string]Notifier),
	}
}

// RegisterNotifier routes deliveries for user ids starting with prefix
// (for example "wa:" or "tg:") to n.
func (b *Bot) RegisterNotifier(prefix string, n Notifier) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notifiers[prefix] = n
}

func (b *Bot) notify(ctx context.Context, userID, text string) error {
	prefix := userPrefix(userID)
	b.mu.RLock()
	n, ok := b.notifiers[prefix]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w %q", errNoNotifier, userID)
	}
	return n.Notify(ctx, userID, text)
}

// userPrefix returns the channel prefix of a user id, colon included.
func userPrefix(userID string) string {
	if i := strings.IndexByte(userID, ':'); i >= 0 {
		return userID[:i+1]
	}
	return ""
}

