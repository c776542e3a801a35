package referral

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/service/facility"
	"github.com/jwalitptl/referral-api/internal/service/outbox"
	"github.com/jwalitptl/referral-api/internal/testutil"
	apperrors "github.com/jwalitptl/referral-api/pkg/errors"
	"github.com/jwalitptl/referral-api/pkg/logger"
	"github.com/jwalitptl/referral-api/pkg/metrics"
)

func newTestService(t *testing.T) (*Service, *testutil.Fixture) {
	f := testutil.NewFixture(t)
	facilities := facility.NewService(f.Store.Facilities, f.Store.FacilityAdmins, time.Minute, time.Minute, logger.Nop())
	svc := NewService(f.Store, facilities, outbox.NewEmitter(f.Store.Outbox), metrics.Noop(), logger.Nop())
	return svc, f
}

func createRequest(f *testutil.Fixture, slotID uuid.UUID) *model.CreateReferralRequest {
	return &model.CreateReferralRequest{
		FromFacilityID: f.Facility.ID,
		ToDepartmentID: f.Department.ID,
		PatientID:      f.Patient.ID,
		SlotID:         slotID,
		Reason:         "chest pain",
	}
}

func assertAppError(t *testing.T, err error, code apperrors.ErrorCode, message string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
	if message != "" {
		assert.Equal(t, message, appErr.Message)
	}
}

func TestCreateBooksSlotAndEmits(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()
	slot := f.AddSlot(t, 48*time.Hour, model.SlotStatusOpen)

	ref, err := svc.Create(ctx, createRequest(f, slot.ID))
	require.NoError(t, err)
	assert.Equal(t, model.ReferralStatusBooked, ref.Status)
	assert.Equal(t, 1, ref.Version)

	stored, err := f.Store.Slots.Get(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStatusBooked, stored.Status)

	assert.Len(t, f.Outbox(t, model.EventReferralBooked), 1)
}

func TestCreateRejectsUnavailableSlot(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()

	held := f.AddSlot(t, time.Hour, model.SlotStatusHeld)
	_, err := svc.Create(ctx, createRequest(f, held.ID))
	assertAppError(t, err, apperrors.ErrBadRequest, "Slot not available")

	_, err = svc.Create(ctx, createRequest(f, uuid.New()))
	assertAppError(t, err, apperrors.ErrBadRequest, "Slot not available")

	refs, err := svc.List(ctx, model.ReferralFilter{})
	require.NoError(t, err)
	assert.Empty(t, refs)
	assert.Empty(t, f.Outbox(t, model.EventReferralBooked))
}

func TestCreateRejectsMissingPatient(t *testing.T) {
	svc, f := newTestService(t)
	slot := f.AddSlot(t, time.Hour, model.SlotStatusOpen)

	req := createRequest(f, slot.ID)
	req.PatientID = uuid.New()
	_, err := svc.Create(context.Background(), req)
	assertAppError(t, err, apperrors.ErrNotFound, "")

	stored, err := f.Store.Slots.Get(context.Background(), slot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStatusOpen, stored.Status)
}

func TestConcurrentCreateSingleWinner(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()
	slot := f.AddSlot(t, 24*time.Hour, model.SlotStatusOpen)

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		rejects int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(ctx, createRequest(f, slot.ID))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				return
			}
			if appErr, ok := apperrors.As(err); ok && appErr.Code == apperrors.ErrBadRequest {
				rejects++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, rejects)

	refs, err := svc.List(ctx, model.ReferralFilter{})
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

func TestCancelIsTerminal(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()
	slot := f.AddSlot(t, 24*time.Hour, model.SlotStatusOpen)

	ref, err := svc.Create(ctx, createRequest(f, slot.ID))
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, ref.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.ReferralStatusCancelled, cancelled.Status)

	stored, err := f.Store.Slots.Get(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStatusOpen, stored.Status)

	before, err := svc.Get(ctx, ref.ID)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, ref.ID, nil)
	assertAppError(t, err, apperrors.ErrBadRequest, "Referral already cancelled")

	after, err := svc.Get(ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
	assert.Len(t, f.Outbox(t, model.EventReferralCancelled), 1)
}

func TestCancelScopedToPatient(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()
	slot := f.AddSlot(t, 24*time.Hour, model.SlotStatusOpen)

	ref, err := svc.Create(ctx, createRequest(f, slot.ID))
	require.NoError(t, err)

	other := uuid.New()
	_, err = svc.Cancel(ctx, ref.ID, &other)
	assertAppError(t, err, apperrors.ErrNotFound, "")

	_, err = svc.Cancel(ctx, ref.ID, &f.Patient.ID)
	require.NoError(t, err)
}

func TestCancelledSlotCanBeRebooked(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()
	slot := f.AddSlot(t, 24*time.Hour, model.SlotStatusOpen)

	ref, err := svc.Create(ctx, createRequest(f, slot.ID))
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, ref.ID, nil)
	require.NoError(t, err)

	second := f.AddPatient(t, "+254700000002")
	req := createRequest(f, slot.ID)
	req.PatientID = second.ID
	_, err = svc.Create(ctx, req)
	require.NoError(t, err)
}

func TestReschedule(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()
	oldSlot := f.AddSlot(t, 24*time.Hour, model.SlotStatusOpen)
	newSlot := f.AddSlot(t, 48*time.Hour, model.SlotStatusOpen)

	ref, err := svc.Create(ctx, createRequest(f, oldSlot.ID))
	require.NoError(t, err)

	_, err = svc.Reschedule(ctx, ref.ID, oldSlot.ID, nil)
	assertAppError(t, err, apperrors.ErrBadRequest, "")

	moved, err := svc.Reschedule(ctx, ref.ID, newSlot.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, newSlot.ID, moved.SlotID)
	assert.Equal(t, model.ReferralStatusBooked, moved.Status)

	o, err := f.Store.Slots.Get(ctx, oldSlot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStatusOpen, o.Status)
	n, err := f.Store.Slots.Get(ctx, newSlot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStatusBooked, n.Status)

	events := f.Outbox(t, model.EventReferralRescheduled)
	require.Len(t, events, 1)
}

func TestRescheduleOntoTakenSlotLeavesReferralUntouched(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()
	oldSlot := f.AddSlot(t, 24*time.Hour, model.SlotStatusOpen)
	closed := f.AddSlot(t, 48*time.Hour, model.SlotStatusClosed)

	ref, err := svc.Create(ctx, createRequest(f, oldSlot.ID))
	require.NoError(t, err)

	_, err = svc.Reschedule(ctx, ref.ID, closed.ID, nil)
	assertAppError(t, err, apperrors.ErrBadRequest, "Slot not available")

	got, err := svc.Get(ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, oldSlot.ID, got.SlotID)

	o, err := f.Store.Slots.Get(ctx, oldSlot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStatusBooked, o.Status)
}

func TestRescheduleCancelledRejected(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()
	oldSlot := f.AddSlot(t, 24*time.Hour, model.SlotStatusOpen)
	newSlot := f.AddSlot(t, 48*time.Hour, model.SlotStatusOpen)

	ref, err := svc.Create(ctx, createRequest(f, oldSlot.ID))
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, ref.ID, nil)
	require.NoError(t, err)

	_, err = svc.Reschedule(ctx, ref.ID, newSlot.ID, nil)
	assertAppError(t, err, apperrors.ErrBadRequest, "")
}

func TestConfirm(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()
	slot := f.AddSlot(t, 24*time.Hour, model.SlotStatusOpen)

	ref, err := svc.Create(ctx, createRequest(f, slot.ID))
	require.NoError(t, err)

	confirmed, err := svc.Confirm(ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReferralStatusConfirmed, confirmed.Status)

	_, err = svc.Confirm(ctx, ref.ID)
	assertAppError(t, err, apperrors.ErrConflict, "")
}

func referralEvent(t *testing.T, f *testutil.Fixture, eventType string) model.ReferralEvent {
	t.Helper()
	events := f.Outbox(t, eventType)
	require.Len(t, events, 1)
	var payload model.ReferralEvent
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	return payload
}

func TestStatusEventsCarrySlotTimes(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()
	confirmSlot := f.AddSlot(t, 24*time.Hour, model.SlotStatusOpen)
	cancelSlot := f.AddSlot(t, 26*time.Hour, model.SlotStatusOpen)

	ref, err := svc.Create(ctx, createRequest(f, confirmSlot.ID))
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, ref.ID)
	require.NoError(t, err)

	confirmed := referralEvent(t, f, model.EventReferralConfirmed)
	assert.True(t, confirmSlot.StartAt.Equal(confirmed.StartAt), "startAt %v", confirmed.StartAt)
	assert.True(t, confirmSlot.EndAt.Equal(confirmed.EndAt), "endAt %v", confirmed.EndAt)

	other := f.AddPatient(t, "+254700000099")
	req := createRequest(f, cancelSlot.ID)
	req.PatientID = other.ID
	ref, err = svc.Create(ctx, req)
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, ref.ID, nil)
	require.NoError(t, err)

	cancelled := referralEvent(t, f, model.EventReferralCancelled)
	assert.Equal(t, model.ReferralStatusCancelled, cancelled.Status)
	assert.Equal(t, cancelSlot.ID, cancelled.SlotID)
	assert.True(t, cancelSlot.StartAt.Equal(cancelled.StartAt), "startAt %v", cancelled.StartAt)
	assert.True(t, cancelSlot.EndAt.Equal(cancelled.EndAt), "endAt %v", cancelled.EndAt)
}

func TestAnalyticsCoversSixMonths(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		slot := f.AddSlot(t, time.Duration(i+1)*time.Hour, model.SlotStatusOpen)
		_, err := svc.Create(ctx, createRequest(f, slot.ID))
		require.NoError(t, err)
	}

	a, err := svc.Analytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, a.StatusCounts[model.ReferralStatusBooked])
	assert.Len(t, a.Monthly, 6)

	current := time.Now().UTC().Format("2006-01")
	require.Contains(t, a.Monthly, current)
	assert.Equal(t, 3, a.Monthly[current][model.ReferralStatusBooked])
}

func TestDueRemindersAndMarkReminded(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()
	soon := f.AddSlot(t, 2*time.Hour, model.SlotStatusOpen)
	later := f.AddSlot(t, 72*time.Hour, model.SlotStatusOpen)

	ref, err := svc.Create(ctx, createRequest(f, soon.ID))
	require.NoError(t, err)
	_, err = svc.Create(ctx, createRequest(f, later.ID))
	require.NoError(t, err)

	due, err := svc.DueReminders(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, ref.ID, due[0].Referral.ID)

	sent, err := svc.MarkReminded(ctx, due[0])
	require.NoError(t, err)
	assert.True(t, sent)

	sent, err = svc.MarkReminded(ctx, due[0])
	require.NoError(t, err)
	assert.False(t, sent)

	due, err = svc.DueReminders(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, due)
	assert.Len(t, f.Outbox(t, model.EventReferralReminder), 1)
}

func TestListForFacilityResolvesNames(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()
	slot := f.AddSlot(t, 24*time.Hour, model.SlotStatusOpen)

	_, err := svc.Create(ctx, createRequest(f, slot.ID))
	require.NoError(t, err)

	views, err := svc.ListForFacility(ctx, f.Facility.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, f.Patient.Phone, views[0].Patient.Phone)
	assert.Equal(t, f.Facility.Name, views[0].FromFacility.Name)
	assert.Equal(t, f.Department.Name, views[0].ToDepartment.Name)
	assert.Equal(t, slot.ID, views[0].Slot.ID)
}
