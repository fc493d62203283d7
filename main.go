package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pathakanu/myAgenda/internal/bot"
	"github.com/pathakanu/myAgenda/internal/config"
	"github.com/pathakanu/myAgenda/internal/database"
	myopenai "github.com/pathakanu/myAgenda/internal/openai"
	"github.com/pathakanu/myAgenda/internal/session"
	"github.com/pathakanu/myAgenda/internal/store"
	"github.com/pathakanu/myAgenda/internal/telegram"
	"github.com/pathakanu/myAgenda/internal/timeparse"
	"github.com/pathakanu/myAgenda/internal/twilio"
)

func main() {
	logger := log.New(os.Stdout, "[myAgenda] ", log.LstdFlags|log.Lshortfile)
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	db, err := database.New(cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		logger.Fatalf("database init failed: %v", err)
	}
	st := store.New(db, store.WithLocation(cfg.LocalTimezone), store.WithResolver(timeparse.New()))

	openAIClient := myopenai.New(cfg.OpenAIAPIKey,
		myopenai.WithModel(cfg.OpenAIModel),
		myopenai.WithBaseURL(cfg.OpenAIBaseURL),
	)
	if !openAIClient.Enabled() {
		logger.Println("OPENAI_API_KEY not set, using keyword classification")
	}

	agenda := bot.New(cfg, st, openAIClient, session.New(session.DefaultSize, cfg.SessionTTL), logger)

	var validator bot.RequestValidator
	if cfg.TwilioAccountSID != "" {
		twilioClient := twilio.New(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppNumber, logger)
		agenda.RegisterNotifier(twilio.UserPrefix, twilioClient)
		if cfg.TwilioAuthToken != "" {
			validator = twilioClient
		}
	} else {
		agenda.RegisterNotifier(twilio.UserPrefix, bot.NotifierFunc(func(_ context.Context, userID, text string) error {
			logger.Printf("twilio not configured, dropping message to %s: %q", userID, text)
			return nil
		}))
	}
	if validator == nil {
		logger.Println("TWILIO_AUTH_TOKEN not set, webhook signatures are not checked")
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	if cfg.TelegramToken != "" {
		tg := telegram.New(cfg.TelegramToken, cfg.TelegramAllowedIDs, agenda, logger)
		if err := tg.Connect(); err != nil {
			logger.Fatalf("telegram: %v", err)
		}
		agenda.RegisterNotifier(telegram.UserPrefix, tg)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := tg.Run(ctx); err != nil {
				logger.Printf("telegram stopped: %v", err)
			}
		}()
	}

	if err := agenda.StartScheduler(); err != nil {
		logger.Fatalf("scheduler start: %v", err)
	}

	http.Handle("/twilio/webhook", agenda.Handler(validator))

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           nil,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Printf("server starting on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	waitForShutdown(server, agenda, logger)
	cancel()
	wg.Wait()
}

func waitForShutdown(server *http.Server, agenda *bot.Bot, logger *log.Logger) {
	stopCtx := make(chan os.Signal, 1)
	signal.Notify(stopCtx, syscall.SIGINT, syscall.SIGTERM)
	<-stopCtx
	logger.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Printf("server shutdown error: %v", err)
	}
	agenda.StopScheduler()
}
