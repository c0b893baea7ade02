// Package bot orchestrates the calendarbot runtime: the Telegram listener,
// the task scheduler and the HTTP server share one lifecycle.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Listener receives Telegram updates until its context is cancelled.
type Listener interface {
	Start(ctx context.Context)
}

// Server serves until its context is cancelled.
type Server interface {
	Run(ctx context.Context) error
}

// Bot runs the long-lived components.
type Bot struct {
	logger    *slog.Logger
	listener  Listener
	scheduler *Scheduler
	http      Server
}

// NewBot creates a Bot. http may be nil to run without the web surface.
func NewBot(logger *slog.Logger, listener Listener, scheduler *Scheduler, http Server) *Bot {
	return &Bot{
		logger:    logger.With("component", "bot_orchestrator"),
		listener:  listener,
		scheduler: scheduler,
		http:      http,
	}
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails. The scheduler is stopped last so that running tasks finish.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator")
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting Telegram listener")
		b.listener.Start(gCtx)
		b.logger.Info("Telegram listener stopped")
		if gCtx.Err() == nil {
			return errors.New("telegram listener stopped unexpectedly")
		}
		return nil
	})

	if b.http != nil {
		g.Go(func() error {
			return b.http.Run(gCtx)
		})
	}

	g.Go(func() error {
		if err := b.scheduler.Start(gCtx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler")
		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}
	b.logger.Info("Bot orchestrator stopped gracefully")
	return nil
}
