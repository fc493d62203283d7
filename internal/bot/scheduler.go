package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pathakanu/myAgenda/internal/model"
	"github.com/robfig/cron/v3"
)

const (
	sweepTimeout  = 30 * time.Second
	digestTimeout = 2 * time.Minute
	minSweepEvery = time.Second
)

// StartScheduler registers the due-reminder sweep and the morning digest
// and starts the scheduler loop. A job still running when its next run is
// due is skipped.
func (b *Bot) StartScheduler() error {
	cronLogger := cron.VerbosePrintfLogger(b.logger)
	b.cron = cron.New(
		cron.WithLocation(b.store.Location()),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	every := b.cfg.SweepInterval
	if every < minSweepEvery {
		every = time.Minute
	}
	if _, err := b.cron.AddFunc("@every "+every.String(), b.sweepJob); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	if spec := strings.TrimSpace(b.cfg.DigestSchedule); spec != "" {
		if _, err := b.cron.AddFunc(spec, b.digestJob); err != nil {
			return fmt.Errorf("schedule digest %q: %w", spec, err)
		}
	}
	b.cron.Start()
	return nil
}

// StopScheduler stops the cron scheduler and waits for running jobs.
func (b *Bot) StopScheduler() {
	if b.cron == nil {
		return
	}
	ctx := b.cron.Stop()
	<-ctx.Done()
}

func (b *Bot) sweepJob() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	if _, err := b.SweepDue(withTraceID(ctx, newTraceID())); err != nil {
		b.logger.Printf("scheduler: sweep: %v", err)
	}
}

func (b *Bot) digestJob() {
	ctx, cancel := context.WithTimeout(context.Background(), digestTimeout)
	defer cancel()
	if _, err := b.SendDigests(withTraceID(ctx, newTraceID())); err != nil {
		b.logger.Printf("scheduler: digest: %v", err)
	}
}

// SweepDue removes every reminder that is due and notifies its owner. It
// returns how many notifications were delivered. Removed reminders are not
// restored when delivery fails.
func (b *Bot) SweepDue(ctx context.Context) (int, error) {
	due, err := b.store.DueSweep(ctx, b.store.Now())
	if err != nil {
		return 0, err
	}

	var sent, total int
	for userID, reminders := range due {
		for _, r := range reminders {
			total++
			if err := b.notify(ctx, userID, reminderMessage(r)); err != nil {
				b.logger.Printf("[%s] scheduler: deliver reminder %d to %s: %v", traceID(ctx), r.ID, userID, err)
				continue
			}
			sent++
		}
	}
	if total > 0 {
		b.logger.Printf("[%s] scheduler: %d due reminder(s), %d delivered", traceID(ctx), total, sent)
	}
	return sent, nil
}

// SendDigests sends every user with pending tasks the list of what is left.
// Users without a registered channel are skipped.
func (b *Bot) SendDigests(ctx context.Context) (int, error) {
	pending, err := b.store.PendingByUser(ctx)
	if err != nil {
		return 0, err
	}

	var sent int
	for userID, tasks := range pending {
		err := b.notify(ctx, userID, digestMessage(tasks))
		switch {
		case errors.Is(err, errNoNotifier):
			continue
		case err != nil:
			b.logger.Printf("[%s] scheduler: digest to %s: %v", traceID(ctx), userID, err)
			continue
		}
		sent++
	}
	return sent, nil
}

func reminderMessage(r model.Reminder) string {
	return fmt.Sprintf("⏰ *Reminder:* %s", r.Title)
}

func digestMessage(tasks []model.Task) string {
	items := make([]string, len(tasks))
	for i, t := range tasks {
		items[i] = t.Title + priorityTag(t.Priority)
	}
	return "☀️ *Good morning!* Still on your list:\n\n" + numbered(items) +
		"\n\nSend /done N when you finish one."
}
