package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/edgard/calendarbot/internal/bot/tasks"
	"github.com/edgard/calendarbot/internal/config"
	"github.com/edgard/calendarbot/internal/metrics"
)

// Scheduler runs the registered tasks with gocron. Tasks with a cron
// schedule run on it; the others run every TaskInterval, starting
// immediately. A task never overlaps with itself.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	cfg       *config.Config
	taskMap   map[string]tasks.ScheduledTaskFunc
	metrics   *metrics.Metrics

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// NewScheduler creates a scheduler for taskMap.
func NewScheduler(logger *slog.Logger, cfg *config.Config, taskMap map[string]tasks.ScheduledTaskFunc, m *metrics.Metrics) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{
		scheduler: s,
		logger:    logger.With("component", "scheduler"),
		cfg:       cfg,
		taskMap:   taskMap,
		metrics:   m,
	}, nil
}

// Start schedules every enabled task. Task contexts derive from ctx and
// are cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler is already running")
	}

	taskCtx, cancel := context.WithCancel(ctx)
	scheduled := 0
	for name, taskCfg := range s.cfg.Scheduler.Tasks {
		if !s.cfg.TaskEnabled(name) {
			s.logger.Info("Skipping disabled task", "task_name", name)
			continue
		}
		fn, ok := s.taskMap[name]
		if !ok {
			s.logger.Warn("Scheduled task configured but not registered, skipping", "task_name", name)
			continue
		}

		def, desc, err := s.definition(name, taskCfg)
		if err != nil {
			s.logger.Warn("Skipping task without a usable schedule", "task_name", name, "error", err)
			continue
		}

		opts := []gocron.JobOption{
			gocron.WithName(name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		}
		if taskCfg.Schedule == "" {
			opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
		}

		if _, err := s.scheduler.NewJob(def, gocron.NewTask(s.wrap(taskCtx, name, fn)), opts...); err != nil {
			s.logger.Error("Failed to schedule task", "task_name", name, "schedule", desc, "error", err)
			continue
		}
		s.logger.Info("Scheduled task", "task_name", name, "schedule", desc)
		scheduled++
	}

	s.scheduler.Start()
	s.running = true
	s.cancel = cancel
	s.logger.Info("Scheduler started", "tasks_scheduled", scheduled)
	return nil
}

func (s *Scheduler) definition(name string, taskCfg config.TaskConfig) (gocron.JobDefinition, string, error) {
	if taskCfg.Schedule != "" {
		return gocron.CronJob(taskCfg.Schedule, true), taskCfg.Schedule, nil
	}
	interval := s.cfg.TaskInterval(name)
	if interval <= 0 {
		return nil, "", errors.New("no cron schedule and no interval")
	}
	return gocron.DurationJob(interval), "every " + interval.String(), nil
}

func (s *Scheduler) wrap(ctx context.Context, name string, fn tasks.ScheduledTaskFunc) func() {
	return func() {
		if ctx.Err() != nil {
			return
		}
		s.logger.Debug("Running scheduled task", "task_name", name)
		start := time.Now()
		err := fn(ctx)
		d := time.Since(start)
		s.metrics.ObserveTask(name, err, d)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("Scheduled task failed", "task_name", name, "error", err, "duration", d)
			return
		}
		s.logger.Debug("Finished scheduled task", "task_name", name, "duration", d)
	}
}

// Stop cancels running tasks and waits for them to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.cancel()
	err := s.scheduler.Shutdown()
	if err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
	} else {
		s.logger.Info("Scheduler stopped")
	}
	s.running = false
	return err
}
