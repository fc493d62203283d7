// Package telegram connects the assistant to a Telegram bot through long
// polling and delivers reminders to Telegram chats.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// UserPrefix marks user ids that belong to Telegram chats.
const UserPrefix = "tg:"

// stallTimeout is how long polling may stay silent before reconnecting.
// The long-poll timeout is 60s, so silence beyond that means a dead link.
const stallTimeout = 150 * time.Second

// Replier produces the answer to one inbound message.
type Replier interface {
	Reply(ctx context.Context, userID, text string) string
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Channel is the Telegram transport.
type Channel struct {
	token   string
	allowed map[int64]struct{}
	replier Replier
	logger  *log.Logger

	bot *tgbotapi.BotAPI
	api sender
}

// New creates a channel. An empty allowlist admits every user.
func New(token string, allowedIDs []int64, replier Replier, logger *log.Logger) *Channel {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	allowed := make(map[int64]struct{}, len(allowedIDs))
	for _, id := range allowedIDs {
		allowed[id] = struct{}{}
	}
	return &Channel{token: token, allowed: allowed, replier: replier, logger: logger}
}

// UserID maps a Telegram chat to a store user id.
func UserID(chatID int64) string {
	return UserPrefix + strconv.FormatInt(chatID, 10)
}

// ChatID extracts the chat id from a "tg:" user id.
func ChatID(userID string) (int64, error) {
	if !strings.HasPrefix(userID, UserPrefix) {
		return 0, fmt.Errorf("telegram: not a Telegram user id: %q", userID)
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(userID, UserPrefix), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram: bad chat id in %q: %w", userID, err)
	}
	return id, nil
}

// Connect authenticates the bot token. It must succeed before Run or Notify.
func (c *Channel) Connect() error {
	bot, err := tgbotapi.NewBotAPI(c.token)
	if err != nil {
		return fmt.Errorf("telegram init failed: %w", err)
	}
	c.bot = bot
	c.api = bot
	if len(c.allowed) == 0 {
		c.logger.Printf("telegram: bot @%s started, open to every user", bot.Self.UserName)
	} else {
		c.logger.Printf("telegram: bot @%s started for %d allowed user(s)", bot.Self.UserName, len(c.allowed))
	}
	return nil
}

// Run polls for updates until ctx is cancelled, reconnecting with
// exponential backoff when the poll stalls.
func (c *Channel) Run(ctx context.Context) error {
	if c.bot == nil {
		return fmt.Errorf("telegram: Run called before Connect")
	}

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return nil
		}

		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates := c.bot.GetUpdatesChan(u)

		pollErr := c.poll(ctx, updates)
		c.bot.StopReceivingUpdates()

		if pollErr == nil {
			return nil
		}
		c.logger.Printf("telegram: poll disconnected (%v), reconnecting in %s", pollErr, backoff)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *Channel) poll(ctx context.Context, updates tgbotapi.UpdatesChannel) error {
	timer := time.NewTimer(stallTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return fmt.Errorf("update channel closed")
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(stallTimeout)

			if update.Message != nil {
				c.handleMessage(ctx, update.Message)
			}
		case <-timer.C:
			return fmt.Errorf("no updates received for %v", stallTimeout)
		}
	}
}

func (c *Channel) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	if !c.isAllowed(msg.From.ID) {
		c.logger.Printf("telegram: access denied for user %d (%s)", msg.From.ID, msg.From.UserName)
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	reply := c.replier.Reply(ctx, UserID(msg.Chat.ID), text)
	if reply == "" {
		return
	}
	if err := c.send(msg.Chat.ID, reply); err != nil {
		c.logger.Printf("telegram: failed to reply to chat %d: %v", msg.Chat.ID, err)
	}
}

func (c *Channel) isAllowed(userID int64) bool {
	if len(c.allowed) == 0 {
		return true
	}
	_, ok := c.allowed[userID]
	return ok
}

// Notify delivers text to a "tg:" user.
func (c *Channel) Notify(_ context.Context, userID, text string) error {
	chatID, err := ChatID(userID)
	if err != nil {
		return err
	}
	if c.api == nil {
		return fmt.Errorf("telegram: not connected")
	}
	return c.send(chatID, text)
}

// send tries Markdown first and falls back to plain text when Telegram
// rejects the markup.
func (c *Channel) send(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := c.api.Send(msg); err == nil {
		return nil
	}
	plain := tgbotapi.NewMessage(chatID, text)
	_, err := c.api.Send(plain)
	return err
}
