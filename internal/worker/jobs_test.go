package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jwalitptl/referral-api/internal/config"
	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/service/referral"
)

type fakeReminders struct {
	due    []referral.DueReminder
	failOn uuid.UUID
	marked []uuid.UUID
}

func (f *fakeReminders) DueReminders(context.Context, time.Duration) ([]referral.DueReminder, error) {
	return f.due, nil
}

func (f *fakeReminders) MarkReminded(_ context.Context, d referral.DueReminder) (bool, error) {
	if d.Referral.ID == f.failOn {
		return false, errors.New("boom")
	}
	f.marked = append(f.marked, d.Referral.ID)
	return true, nil
}

type fakeHolds struct{ olderThan time.Duration }

func (f *fakeHolds) ReleaseStaleHolds(_ context.Context, olderThan time.Duration) (int64, error) {
	f.olderThan = olderThan
	return 2, nil
}

type fakeCleaner struct{ err error }

func (f *fakeCleaner) Cleanup(context.Context, time.Duration) (int64, error) {
	return 0, f.err
}

func due(id uuid.UUID) referral.DueReminder {
	ref := &model.Referral{}
	ref.ID = id
	slot := &model.Slot{}
	slot.ID = uuid.New()
	return referral.DueReminder{Referral: ref, Slot: slot}
}

func TestReminderJobContinuesPastFailures(t *testing.T) {
	first, broken, last := uuid.New(), uuid.New(), uuid.New()
	reminders := &fakeReminders{
		due:    []referral.DueReminder{due(first), due(broken), due(last)},
		failOn: broken,
	}
	jobs := &Jobs{Reminders: reminders, Logger: zap.NewNop()}

	require.NoError(t, jobs.ReminderJob(24*time.Hour)(context.Background()))
	assert.Equal(t, []uuid.UUID{first, last}, reminders.marked)
}

func TestHoldReleaseJobPassesTTL(t *testing.T) {
	holds := &fakeHolds{}
	jobs := &Jobs{Holds: holds, Logger: zap.NewNop()}

	require.NoError(t, jobs.HoldReleaseJob(30*time.Minute)(context.Background()))
	assert.Equal(t, 30*time.Minute, holds.olderThan)
}

func TestOutboxCleanupJobReturnsError(t *testing.T) {
	jobs := &Jobs{Outbox: &fakeCleaner{err: errors.New("db down")}, Logger: zap.NewNop()}
	assert.Error(t, jobs.OutboxCleanupJob(time.Hour)(context.Background()))
}

func TestRegisterRejectsBadSpec(t *testing.T) {
	s := NewScheduler(zap.NewNop(), time.Minute)
	defer s.Stop()

	jobs := &Jobs{Reminders: &fakeReminders{}, Holds: &fakeHolds{}, Outbox: &fakeCleaner{}, Logger: zap.NewNop()}
	err := jobs.Register(s, config.JobsConfig{ReminderSpec: "not a spec"})
	assert.Error(t, err)

	err = jobs.Register(s, config.JobsConfig{
		ReminderSpec:      "@hourly",
		HoldReleaseSpec:   "*/15 * * * *",
		OutboxCleanupSpec: "",
	})
	assert.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 2)
}
