package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/bebusy/backend/config"
)

const jobTimeout = time.Minute

// BanExpirer clears lapsed bans.
type BanExpirer interface {
	ExpireBans(ctx context.Context, now time.Time) (int64, error)
}

// BindingReconciler re-seats active focus-group members in their bound chats.
type BindingReconciler interface {
	ReconcileBindings(ctx context.Context) (int64, error)
}

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron     *cron.Cron
	bans     BanExpirer
	bindings BindingReconciler
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a scheduler with every job registered. Specs have seconds precision.
func New(cfg config.SchedulerConfig, bans BanExpirer, bindings BindingReconciler, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithSeconds(),
		),
		bans:     bans,
		bindings: bindings,
		logger:   logger,
		now:      time.Now,
	}
	if err := s.registerJobs(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) registerJobs(cfg config.SchedulerConfig) error {
	if _, err := s.cron.AddFunc(cfg.ExpireBans, s.ExpireBans); err != nil {
		return fmt.Errorf("register ExpireBans %q: %w", cfg.ExpireBans, err)
	}
	if _, err := s.cron.AddFunc(cfg.ReconcileBindings, s.ReconcileBindings); err != nil {
		return fmt.Errorf("register ReconcileBindings %q: %w", cfg.ReconcileBindings, err)
	}
	s.logger.Info("cron jobs registered", zap.Int("jobs", len(s.cron.Entries())))
	return nil
}

// ExpireBans clears every ban whose expiry has passed.
func (s *Scheduler) ExpireBans() {
	s.runWithRecovery("expire_bans", func(ctx context.Context) error {
		n, err := s.bans.ExpireBans(ctx, s.now())
		if err != nil {
			return err
		}
		if n > 0 {
			s.logger.Info("expired bans cleared", zap.Int64("profiles", n))
		}
		return nil
	})
}

// ReconcileBindings seats active members missing from their focus group's chat.
func (s *Scheduler) ReconcileBindings() {
	s.runWithRecovery("reconcile_bindings", func(ctx context.Context) error {
		n, err := s.bindings.ReconcileBindings(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			s.logger.Warn("chat bindings repaired", zap.Int64("seats", n))
		}
		return nil
	})
}

// runWithRecovery wraps job execution with panic recovery
func (s *Scheduler) runWithRecovery(name string, job func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", zap.String("job", name), zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	start := time.Now()
	if err := job(ctx); err != nil {
		s.logger.Error("job failed", zap.String("job", name), zap.Error(err))
		return
	}
	s.logger.Debug("job completed", zap.String("job", name), zap.Duration("took", time.Since(start)))
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("cron scheduler started")
}

// Stop waits for running jobs and stops the scheduler.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("cron scheduler stopped")
}
