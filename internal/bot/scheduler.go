package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/edgard/taskbot/internal/bot/tasks"
	"github.com/edgard/taskbot/internal/config"
)

// Scheduler runs the configured tasks on their cron schedules and on demand.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	cfg       *config.SchedulerConfig
	taskMap   map[string]tasks.ScheduledTaskFunc
	// locks keeps a scheduled run and an on demand run of the same task apart.
	locks map[string]*sync.Mutex

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler creates a scheduler evaluating cron expressions in the
// configured timezone.
func NewScheduler(logger *slog.Logger, cfg *config.SchedulerConfig, taskMap map[string]tasks.ScheduledTaskFunc) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "scheduler")

	s, err := gocron.NewScheduler(gocron.WithLocation(cfg.Location()))
	if err != nil {
		log.Error("Failed to create gocron scheduler", "error", err)
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	locks := make(map[string]*sync.Mutex, len(taskMap))
	for name := range taskMap {
		locks[name] = &sync.Mutex{}
	}

	return &Scheduler{
		scheduler: s,
		logger:    log,
		cfg:       cfg,
		taskMap:   taskMap,
		locks:     locks,
	}, nil
}

// Start schedules all enabled tasks and starts the scheduler.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	names := make([]string, 0, len(s.cfg.Tasks))
	for name := range s.cfg.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	scheduledCount := 0
	for _, taskName := range names {
		taskConfig := s.cfg.Tasks[taskName]
		if !taskConfig.Enabled {
			s.logger.Info("Skipping disabled task", "task_name", taskName)
			continue
		}
		if _, exists := s.taskMap[taskName]; !exists {
			s.logger.Warn("Scheduled task configured but not found in registry, skipping", "task_name", taskName)
			continue
		}

		_, err := s.scheduler.NewJob(
			gocron.CronJob(taskConfig.Schedule, true),
			gocron.NewTask(
				func(ctx context.Context, name string) {
					if err := s.run(ctx, name); err != nil {
						s.logger.Error("Scheduled task failed", "task_name", name, "error", err)
					}
				},
				s.ctx,
				taskName,
			),
			gocron.WithName(taskName),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			s.logger.Error("Failed to schedule task", "task_name", taskName, "schedule", taskConfig.Schedule, "error", err)
			continue
		}

		s.logger.Info("Scheduled task", "task_name", taskName, "schedule", taskConfig.Schedule)
		scheduledCount++
	}

	s.scheduler.Start()
	s.running = true
	s.logger.Info("Scheduler started", "tasks_scheduled", scheduledCount, "timezone", s.cfg.Timezone)
	return nil
}

// RunNow runs the named task immediately, waiting for a scheduled run of the
// same task to finish first.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	if _, ok := s.taskMap[name]; !ok {
		return fmt.Errorf("unknown task %q", name)
	}
	return s.run(ctx, name)
}

func (s *Scheduler) run(ctx context.Context, name string) error {
	lock := s.locks[name]
	lock.Lock()
	defer lock.Unlock()

	s.logger.Info("Running scheduled task", "task_name", name)
	startTime := time.Now()
	err := s.taskMap[name](ctx)
	s.logger.Info("Finished scheduled task", "task_name", name, "duration", time.Since(startTime), "failed", err != nil)
	return err
}

// Stop shuts the scheduler down. Running tasks finish with their context
// intact, then the task context is cancelled.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.logger.Info("Scheduler is not running, nothing to stop.")
		return nil
	}

	err := s.scheduler.Shutdown()
	s.cancel()
	if err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
	} else {
		s.logger.Info("Scheduler stopped gracefully.")
	}

	s.running = false
	return err
}
