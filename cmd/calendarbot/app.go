package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	tgbot "github.com/go-telegram/bot"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/edgard/calendarbot/internal/bot"
	"github.com/edgard/calendarbot/internal/bot/handlers"
	"github.com/edgard/calendarbot/internal/bot/tasks"
	"github.com/edgard/calendarbot/internal/config"
	"github.com/edgard/calendarbot/internal/database"
	"github.com/edgard/calendarbot/internal/event"
	"github.com/edgard/calendarbot/internal/logger"
	"github.com/edgard/calendarbot/internal/metrics"
	"github.com/edgard/calendarbot/internal/mirror"
	"github.com/edgard/calendarbot/internal/oracle"
	"github.com/edgard/calendarbot/internal/pipeline"
	"github.com/edgard/calendarbot/internal/reminder"
	"github.com/edgard/calendarbot/internal/source"
	"github.com/edgard/calendarbot/internal/store"
	"github.com/edgard/calendarbot/internal/telegram"
	"github.com/edgard/calendarbot/internal/web"
)

// app holds the components shared by every command.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	metrics *metrics.Metrics

	db          *sqlx.DB
	inbox       database.Store
	events      *store.FileStore
	processed   *store.Ledger
	sent        *store.Ledger
	subscribers *store.Ledger
	dismissed   *store.Ledger
	pipeline    *pipeline.Pipeline
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	if err := os.MkdirAll(cfg.Storage.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", cfg.Storage.Dir, err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	db, err := database.NewDB(cfg.Storage.InboxPath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open inbox database %s: %w", cfg.Storage.InboxPath, err)
	}
	a := &app{
		cfg:     cfg,
		log:     log,
		metrics: m,
		db:      db,
		inbox:   database.NewStore(db, log),
	}

	orc, err := oracle.New(ctx, cfg.Oracle, log)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize %s oracle: %w", cfg.Oracle.Provider, err)
	}

	var transcriber source.Transcriber
	if cfg.OCR.Enabled {
		if key := cfg.OCRKey(); key == "" {
			log.Warn("Image transcription enabled without a Gemini API key, images will be skipped")
		} else {
			gt, err := source.NewGeminiTranscriber(ctx, key, cfg.OCR.Model, log)
			if err != nil {
				a.close()
				return nil, fmt.Errorf("failed to initialize image transcription: %w", err)
			}
			transcriber = gt
		}
	}

	storeOpts := []store.Option{store.WithMetrics(m)}
	if cfg.Mirror.Enabled {
		g, err := mirror.NewGoogle(ctx, cfg.Mirror, log)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to initialize calendar mirror: %w", err)
		}
		storeOpts = append(storeOpts, store.WithMirror(g))
	}

	a.events = store.NewFileStore(cfg.Storage.EventsPath(), log, storeOpts...)
	a.processed = store.NewLedger(cfg.Storage.ProcessedPath(), log)
	a.sent = store.NewLedger(cfg.Storage.SentRemindersPath(), log)
	a.subscribers = store.NewLedger(cfg.Storage.SubscribersPath(), log)
	a.dismissed = store.NewLedger(cfg.Storage.DismissedPath(), log)

	a.pipeline = pipeline.New(pipeline.Deps{
		Logger:     log,
		Extractor:  source.NewExtractor(log, transcriber),
		Oracle:     orc,
		Normalizer: event.NewNormalizer(log, event.WithMinConfidence(cfg.Acceptance.MinConfidence)),
		Events:     a.events,
		Processed:  a.processed,
		Metrics:    m,
	})
	return a, nil
}

func (a *app) close() {
	database.CloseDB(a.db, a.log)
}

// telegramBot creates the Bot API client. A non-nil capture handler
// receives every update not matched by a command.
func (a *app) telegramBot(capture tgbot.HandlerFunc) (*tgbot.Bot, error) {
	opts := []tgbot.Option{tgbot.WithMiddlewares(logger.Middleware(a.log))}
	if capture != nil {
		opts = append(opts, tgbot.WithDefaultHandler(capture))
	}
	tg, err := telegram.NewTelegramBot(a.cfg.Telegram.Token, a.log, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return tg, nil
}

func (a *app) reminders(tg *tgbot.Bot) *reminder.Reminder {
	notifier := telegram.NewNotifier(tg, a.subscribers, a.log)
	return reminder.New(a.events, a.sent, notifier, a.cfg.Reminder.LeadDays, a.cfg.Reminder.Template, a.log, a.metrics)
}

// runtime wires the long-lived components of the serve command.
func (a *app) runtime(ctx context.Context) (*bot.Bot, error) {
	hDeps := handlers.HandlerDeps{
		Logger:      a.log,
		Config:      a.cfg,
		Inbox:       a.inbox,
		Events:      a.events,
		Subscribers: a.subscribers,
		Dismissed:   a.dismissed,
	}

	tg, err := a.telegramBot(handlers.NewCaptureHandler(hDeps))
	if err != nil {
		return nil, err
	}

	a.cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get bot info: %w", err)
	}
	a.log.Info("Retrieved bot info", "bot_id", a.cfg.Telegram.BotInfo.ID, "bot_username", a.cfg.Telegram.BotInfo.Username)

	if err := telegram.RegisterHandlers(tg, a.log, handlers.RegisterAllCommands(hDeps)); err != nil {
		return nil, fmt.Errorf("failed to register telegram handlers: %w", err)
	}

	tDeps := tasks.TaskDeps{
		Logger:    a.log,
		Config:    a.cfg,
		Inbox:     a.inbox,
		Pipeline:  a.pipeline,
		Fetcher:   telegram.NewFileFetcher(tg, a.cfg.Telegram.Token),
		Reminders: a.reminders(tg),
	}
	sched, err := bot.NewScheduler(a.log, a.cfg, tasks.RegisterAllTasks(tDeps), a.metrics)
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	srv := web.NewServer(web.Deps{
		Logger:      a.log,
		Config:      a.cfg,
		Uploads:     a.pipeline,
		Events:      a.events,
		Dismissed:   a.dismissed,
		Subscribers: a.subscribers,
		Logins:      a.inbox,
		Codes:       telegram.NewCodeSender(tg, telegram.ResolveWith(tg), a.cfg.Messages.LoginCode),
		Health:      a.inbox,
		Gatherer:    prometheus.DefaultGatherer,
	})

	return bot.NewBot(a.log, tg, sched, srv), nil
}
