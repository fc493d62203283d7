// Command agenda-repl talks to the agenda bot from a terminal. Reminders
// for the local user are printed while the prompt is open.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pathakanu/myAgenda/internal/bot"
	"github.com/pathakanu/myAgenda/internal/config"
	"github.com/pathakanu/myAgenda/internal/console"
	"github.com/pathakanu/myAgenda/internal/database"
	myopenai "github.com/pathakanu/myAgenda/internal/openai"
	"github.com/pathakanu/myAgenda/internal/session"
	"github.com/pathakanu/myAgenda/internal/store"
	"github.com/pathakanu/myAgenda/internal/timeparse"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	rl, err := console.NewReadline()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize readline: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	logger := log.New(rl.Stderr(), "[myAgenda] ", log.LstdFlags)

	db, err := database.New(cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		logger.Fatalf("database init failed: %v", err)
	}

	st := store.New(db, store.WithLocation(cfg.LocalTimezone), store.WithResolver(timeparse.New()))
	ai := myopenai.New(cfg.OpenAIAPIKey,
		myopenai.WithModel(cfg.OpenAIModel),
		myopenai.WithBaseURL(cfg.OpenAIBaseURL),
	)
	if !ai.Enabled() {
		logger.Println("OPENAI_API_KEY not set, using keyword classification")
	}

	agenda := bot.New(cfg, st, ai, session.New(session.DefaultSize, cfg.SessionTTL), logger)
	term := console.New(os.Getenv("AGENDA_USER"), agenda, rl.Stdout())
	agenda.RegisterNotifier(console.UserPrefix, term)

	if err := agenda.StartScheduler(); err != nil {
		logger.Fatalf("scheduler start: %v", err)
	}
	defer agenda.StopScheduler()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	if err := term.Run(ctx, rl); err != nil {
		logger.Printf("console: %v", err)
	}
}
