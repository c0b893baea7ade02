package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgard/calendarbot/internal/config"
	"github.com/edgard/calendarbot/internal/logger"
)

const defaultConfigPath = "./config.yaml"

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "calendarbot",
		Short:         "Extract calendar events from Telegram groups and remind subscribers",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "Path to configuration file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the Telegram listener, the scheduled tasks and the HTTP server",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context(), configPath)
			},
		},
		&cobra.Command{
			Use:   "extract <file>",
			Short: "Extract events from a local file and store them",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runExtract(cmd.Context(), configPath, args[0])
			},
		},
		&cobra.Command{
			Use:   "remind",
			Short: "Run one reminder cycle and exit",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runRemind(cmd.Context(), configPath)
			},
		},
	)
	return root
}

// setup loads the configuration and installs the process logger.
func setup(configPath string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)
	return cfg, log, nil
}

func runServe(ctx context.Context, configPath string) error {
	cfg, log, err := setup(configPath)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	b, err := a.runtime(ctx)
	if err != nil {
		return err
	}

	log.Info("Starting calendarbot...")
	runErr := b.Run(ctx)
	log.Info("Run loop finished. Initiating shutdown...")

	// Allow logs to flush before exiting.
	defer time.Sleep(time.Second)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	log.Info("calendarbot stopped gracefully.")
	return nil
}

func runExtract(ctx context.Context, configPath, path string) error {
	cfg, log, err := setup(configPath)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	n, err := a.pipeline.ProcessUpload(ctx, filepath.Base(path), path)
	if err != nil {
		return fmt.Errorf("failed to extract events from %s: %w", path, err)
	}
	log.Info("Extraction finished", "file", path, "events_found", n)
	return nil
}

func runRemind(ctx context.Context, configPath string) error {
	cfg, log, err := setup(configPath)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	tg, err := a.telegramBot(nil)
	if err != nil {
		return err
	}

	res, err := a.reminders(tg).RunCycle(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("reminder cycle failed: %w", err)
	}
	log.Info("Reminder cycle finished", "due", res.Due, "sent", res.Sent, "failed", res.Failed)
	return nil
}
