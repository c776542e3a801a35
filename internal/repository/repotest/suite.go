// Package repotest holds behaviour every repository backend must share.
// Backends call Run from their own tests; the suite only touches rows it
// creates, so it is safe against a shared database.
package repotest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
)

// Run exercises store against the shared repository contract
func Run(t *testing.T, store *repository.Store) {
	s := &suite{store: store, now: time.Now().UTC().Truncate(time.Second)}

	t.Run("facility with departments", s.testFacility)
	t.Run("slot claim and release", s.testClaimRelease)
	t.Run("concurrent claim has one winner", s.testConcurrentClaim)
	t.Run("stale slot update conflicts", s.testVersionConflict)
	t.Run("booked slot cannot be deleted", s.testDeleteBooked)
	t.Run("failed transaction rolls back", s.testRollback)
	t.Run("rollback keeps concurrent writes", s.testRollbackKeepsOtherWrites)
	t.Run("patient phone is unique", s.testPatient)
	t.Run("outbox lifecycle", s.testOutbox)
}

type suite struct {
	store *repository.Store
	now   time.Time
}

func (s *suite) facility(t *testing.T) (*model.Facility, *model.Department) {
	t.Helper()
	f := &model.Facility{
		Name:     "Repo Test " + uuid.NewString()[:8],
		Type:     model.FacilityTypeClinic,
		Location: model.NewGeoPoint(36.8, -1.3),
	}
	f.Touch(s.now)
	d := &model.Department{ID: uuid.New(), FacilityID: f.ID, Name: "Cardiology"}
	f.Departments = []*model.Department{d}
	require.NoError(t, s.store.Facilities.Create(context.Background(), f))
	return f, d
}

func (s *suite) slot(t *testing.T, f *model.Facility, d *model.Department, status model.SlotStatus) *model.Slot {
	t.Helper()
	start := s.now.Add(48 * time.Hour)
	sl := &model.Slot{
		FacilityID:   f.ID,
		DepartmentID: d.ID,
		StartAt:      start,
		EndAt:        start.Add(30 * time.Minute),
		Status:       status,
		Version:      1,
	}
	sl.Touch(s.now)
	require.NoError(t, s.store.Slots.Create(context.Background(), sl))
	return sl
}

func (s *suite) testFacility(t *testing.T) {
	ctx := context.Background()
	f, d := s.facility(t)

	got, err := s.store.Facilities.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, f.Name, got.Name)
	assert.InDelta(t, 36.8, got.Location.Lng(), 1e-9)
	require.Len(t, got.Departments, 1)
	assert.Equal(t, d.ID, got.Departments[0].ID)

	dep, err := s.store.Facilities.GetDepartment(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, f.ID, dep.FacilityID)

	_, err = s.store.Facilities.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func (s *suite) testClaimRelease(t *testing.T) {
	ctx := context.Background()
	f, d := s.facility(t)
	sl := s.slot(t, f, d, model.SlotStatusOpen)

	claimed, err := s.store.Slots.Claim(ctx, sl.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStatusBooked, claimed.Status)
	assert.Equal(t, sl.Version+1, claimed.Version)

	_, err = s.store.Slots.Claim(ctx, sl.ID)
	assert.ErrorIs(t, err, repository.ErrSlotUnavailable)
	_, err = s.store.Slots.Claim(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrSlotUnavailable)

	require.NoError(t, s.store.Slots.Release(ctx, sl.ID))
	got, err := s.store.Slots.Get(ctx, sl.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStatusOpen, got.Status)

	open := model.SlotStatusOpen
	listed, err := s.store.Slots.List(ctx, model.SlotFilter{FacilityID: &f.ID, Status: &open})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, sl.ID, listed[0].ID)
}

func (s *suite) testConcurrentClaim(t *testing.T) {
	f, d := s.facility(t)
	sl := s.slot(t, f, d, model.SlotStatusOpen)

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Slots.Claim(context.Background(), sl.ID)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, repository.ErrSlotUnavailable)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func (s *suite) testVersionConflict(t *testing.T) {
	ctx := context.Background()
	f, d := s.facility(t)
	sl := s.slot(t, f, d, model.SlotStatusOpen)

	first, err := s.store.Slots.Get(ctx, sl.ID)
	require.NoError(t, err)
	second, err := s.store.Slots.Get(ctx, sl.ID)
	require.NoError(t, err)

	first.Status = model.SlotStatusClosed
	require.NoError(t, s.store.Slots.Update(ctx, first))
	assert.Equal(t, sl.Version+1, first.Version)

	second.Status = model.SlotStatusHeld
	assert.ErrorIs(t, s.store.Slots.Update(ctx, second), repository.ErrVersionConflict)

	missing := *sl
	missing.ID = uuid.New()
	assert.ErrorIs(t, s.store.Slots.Update(ctx, &missing), repository.ErrNotFound)
}

func (s *suite) testDeleteBooked(t *testing.T) {
	ctx := context.Background()
	f, d := s.facility(t)
	booked := s.slot(t, f, d, model.SlotStatusBooked)
	open := s.slot(t, f, d, model.SlotStatusOpen)

	assert.ErrorIs(t, s.store.Slots.Delete(ctx, booked.ID), repository.ErrSlotBooked)
	require.NoError(t, s.store.Slots.Delete(ctx, open.ID))
	assert.ErrorIs(t, s.store.Slots.Delete(ctx, open.ID), repository.ErrNotFound)
}

func (s *suite) testRollback(t *testing.T) {
	ctx := context.Background()
	f, d := s.facility(t)
	sl := s.slot(t, f, d, model.SlotStatusOpen)

	boom := errors.New("boom")
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.Slots.Claim(ctx, sl.ID); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.store.Slots.Get(ctx, sl.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStatusOpen, got.Status)
}

func (s *suite) testRollbackKeepsOtherWrites(t *testing.T) {
	ctx := context.Background()
	f, d := s.facility(t)
	sl := s.slot(t, f, d, model.SlotStatusOpen)

	started := make(chan struct{})
	release := make(chan struct{})
	txErr := make(chan error, 1)
	boom := errors.New("boom")
	go func() {
		txErr <- s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
			if _, err := s.store.Slots.Claim(ctx, sl.ID); err != nil {
				return err
			}
			close(started)
			<-release
			return boom
		})
	}()
	<-started

	p := &model.Patient{Name: "Outside", Phone: randomPhone(), PreferredLanguage: model.DefaultLanguage}
	p.Touch(s.now)
	createErr := make(chan error, 1)
	go func() { createErr <- s.store.Patients.Create(context.Background(), p) }()

	time.Sleep(20 * time.Millisecond)
	close(release)

	assert.ErrorIs(t, <-txErr, boom)
	require.NoError(t, <-createErr)

	_, err := s.store.Patients.Get(ctx, p.ID)
	require.NoError(t, err)
	got, err := s.store.Slots.Get(ctx, sl.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStatusOpen, got.Status)
}

func randomPhone() string {
	return fmt.Sprintf("+2547%08d", rand.Intn(100000000))
}

func (s *suite) testPatient(t *testing.T) {
	ctx := context.Background()
	phone := randomPhone()
	p := &model.Patient{Name: "Amina", Phone: phone, PreferredLanguage: model.DefaultLanguage, Consented: true}
	p.Touch(s.now)
	require.NoError(t, s.store.Patients.Create(ctx, p))

	dup := &model.Patient{Name: "Other", Phone: phone, PreferredLanguage: model.DefaultLanguage}
	dup.Touch(s.now)
	assert.ErrorIs(t, s.store.Patients.Create(ctx, dup), repository.ErrDuplicate)

	got, err := s.store.Patients.GetByPhone(ctx, phone)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	n := &model.Notification{ID: uuid.New(), Message: "Referral booked", SentAt: s.now}
	require.NoError(t, s.store.Patients.AddNotification(ctx, p.ID, n))
	got, err = s.store.Patients.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Notifications, 1)
	assert.Equal(t, "Referral booked", got.Notifications[0].Message)

	require.NoError(t, s.store.Patients.ClearNotifications(ctx, p.ID))
	got, err = s.store.Patients.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Notifications)
}

func (s *suite) testOutbox(t *testing.T) {
	ctx := context.Background()
	e := &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: model.EventReferralBooked,
		Payload:   []byte(`{}`),
		Status:    model.OutboxStatusPending,
		CreatedAt: s.now,
		UpdatedAt: s.now,
	}
	require.NoError(t, s.store.Outbox.Create(ctx, e))
	assert.True(t, s.pending(t, e.ID))

	retryAt := time.Now().UTC().Add(time.Hour)
	msg := "broker down"
	require.NoError(t, s.store.Outbox.UpdateStatus(ctx, e.ID, model.OutboxStatusRetry, &msg, &retryAt))
	assert.False(t, s.pending(t, e.ID))

	require.NoError(t, s.store.Outbox.UpdateStatus(ctx, e.ID, model.OutboxStatusProcessed, nil, nil))
	assert.False(t, s.pending(t, e.ID))

	n, err := s.store.Outbox.DeleteProcessedBefore(ctx, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))

	assert.ErrorIs(t, s.store.Outbox.UpdateStatus(ctx, uuid.New(), model.OutboxStatusProcessed, nil, nil), repository.ErrNotFound)
}

func (s *suite) pending(t *testing.T, id uuid.UUID) bool {
	t.Helper()
	events, err := s.store.Outbox.GetPendingEvents(context.Background(), 10000)
	require.NoError(t, err)
	for _, e := range events {
		if e.ID == id {
			return true
		}
	}
	return false
}
