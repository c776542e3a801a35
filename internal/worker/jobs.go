package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jwalitptl/referral-api/internal/config"
	"github.com/jwalitptl/referral-api/internal/service/referral"
)

type ReminderSource interface {
	DueReminders(ctx context.Context, window time.Duration) ([]referral.DueReminder, error)
	MarkReminded(ctx context.Context, due referral.DueReminder) (bool, error)
}

type HoldReleaser interface {
	ReleaseStaleHolds(ctx context.Context, olderThan time.Duration) (int64, error)
}

type OutboxCleaner interface {
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

// Jobs holds what the scheduled jobs operate on
type Jobs struct {
	Reminders ReminderSource
	Holds     HoldReleaser
	Outbox    OutboxCleaner
	Logger    *zap.Logger
}

// ReminderJob emits one reminder per live referral whose slot starts within
// window. A failure on one referral does not stop the rest.
func (j *Jobs) ReminderJob(window time.Duration) Job {
	return func(ctx context.Context) error {
		due, err := j.Reminders.DueReminders(ctx, window)
		if err != nil {
			return err
		}

		sent := 0
		for _, d := range due {
			ok, err := j.Reminders.MarkReminded(ctx, d)
			if err != nil {
				j.Logger.Error("Failed to send reminder",
					zap.String("referral_id", d.Referral.ID.String()),
					zap.Error(err))
				continue
			}
			if ok {
				sent++
			}
		}
		if sent > 0 {
			j.Logger.Info("Reminders sent", zap.Int("count", sent))
		}
		return nil
	}
}

func (j *Jobs) HoldReleaseJob(ttl time.Duration) Job {
	return func(ctx context.Context) error {
		n, err := j.Holds.ReleaseStaleHolds(ctx, ttl)
		if err != nil {
			return err
		}
		if n > 0 {
			j.Logger.Info("Released stale holds", zap.Int64("count", n))
		}
		return nil
	}
}

func (j *Jobs) OutboxCleanupJob(retention time.Duration) Job {
	return func(ctx context.Context) error {
		n, err := j.Outbox.Cleanup(ctx, retention)
		if err != nil {
			return err
		}
		j.Logger.Info("Cleaned up outbox", zap.Int64("deleted", n), zap.Duration("retention", retention))
		return nil
	}
}

// Register schedules every job on s
func (j *Jobs) Register(s *Scheduler, cfg config.JobsConfig) error {
	if err := s.Add("reminders", cfg.ReminderSpec, j.ReminderJob(cfg.ReminderWindow)); err != nil {
		return err
	}
	if err := s.Add("hold-release", cfg.HoldReleaseSpec, j.HoldReleaseJob(cfg.HoldTTL)); err != nil {
		return err
	}
	return s.Add("outbox-cleanup", cfg.OutboxCleanupSpec, j.OutboxCleanupJob(cfg.OutboxRetention))
}
