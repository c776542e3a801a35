package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/service/facility"
	"github.com/jwalitptl/referral-api/internal/testutil"
	"github.com/jwalitptl/referral-api/pkg/logger"
)

func newTestService(t *testing.T) (*Service, *testutil.Fixture) {
	f := testutil.NewFixture(t)
	facilities := facility.NewService(f.Store.Facilities, f.Store.FacilityAdmins, time.Minute, time.Minute, logger.Nop())
	return NewService(f.Store, facilities), f
}

func addReferral(t *testing.T, f *testutil.Fixture, slot *model.Slot, status model.ReferralStatus) *model.Referral {
	t.Helper()
	ref := &model.Referral{
		FromFacilityID: f.Facility.ID,
		ToDepartmentID: f.Department.ID,
		PatientID:      f.Patient.ID,
		SlotID:         slot.ID,
		Status:         status,
		Version:        1,
	}
	ref.Touch(f.Now)
	require.NoError(t, f.Store.Referrals.Create(context.Background(), ref))
	return ref
}

func TestPatientAppointments(t *testing.T) {
	svc, f := newTestService(t)
	doctor := f.AddProvider(t, "doc@example.com")
	slot := f.AddSlot(t, 5*time.Hour, model.SlotStatusBooked)
	ref := addReferral(t, f, slot, model.ReferralStatusBooked)

	appts, err := svc.PatientAppointments(context.Background(), f.Patient.ID)
	require.NoError(t, err)
	require.Len(t, appts, 1)

	a := appts[0]
	assert.Equal(t, ref.ID, a.ID)
	assert.Equal(t, slot.StartAt, *a.Date)
	require.NotNil(t, a.Department)
	assert.Equal(t, f.Department.Name, *a.Department)
	require.NotNil(t, a.Facility)
	assert.Equal(t, f.Facility.Name, a.Facility.Name)
	require.NotNil(t, a.Provider)
	assert.Equal(t, doctor.ID, a.Provider.ID)
}

func TestPatientAppointmentsEmpty(t *testing.T) {
	svc, _ := newTestService(t)
	appts, err := svc.PatientAppointments(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, appts)
	assert.Empty(t, appts)
}

func TestPatientReminders(t *testing.T) {
	svc, f := newTestService(t)
	soon := f.AddSlot(t, 3*time.Hour, model.SlotStatusBooked)
	far := f.AddSlot(t, 72*time.Hour, model.SlotStatusBooked)
	cancelled := f.AddSlot(t, 4*time.Hour, model.SlotStatusOpen)

	want := addReferral(t, f, soon, model.ReferralStatusConfirmed)
	addReferral(t, f, far, model.ReferralStatusBooked)
	addReferral(t, f, cancelled, model.ReferralStatusCancelled)

	reminders, err := svc.PatientReminders(context.Background(), f.Patient.ID)
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, want.ID, reminders[0].ID)
}

func TestPatientReferralsNames(t *testing.T) {
	svc, f := newTestService(t)
	slot := f.AddSlot(t, time.Hour, model.SlotStatusBooked)
	addReferral(t, f, slot, model.ReferralStatusBooked)

	refs, err := svc.PatientReferrals(context.Background(), f.Patient.ID)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, f.Facility.Name, *refs[0].FromFacilityName)
	assert.Equal(t, f.Department.Name, *refs[0].ToDepartmentName)
}

func TestAdminStats(t *testing.T) {
	svc, f := newTestService(t)
	f.AddProvider(t, "active@example.com")
	inactive := f.AddProvider(t, "inactive@example.com")
	inactive.IsActive = false
	require.NoError(t, f.Store.Providers.Update(context.Background(), inactive))

	addReferral(t, f, f.AddSlot(t, time.Hour, model.SlotStatusBooked), model.ReferralStatusBooked)
	addReferral(t, f, f.AddSlot(t, 2*time.Hour, model.SlotStatusBooked), model.ReferralStatusConfirmed)
	addReferral(t, f, f.AddSlot(t, 3*time.Hour, model.SlotStatusOpen), model.ReferralStatusCancelled)

	stats, err := svc.AdminStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalFacilities)
	assert.Equal(t, 1, stats.TotalProviders)
	assert.Equal(t, 1, stats.TotalPatients)
	assert.Equal(t, 2, stats.ActiveReferrals)
}

func TestProviderAnalytics(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()
	p := f.AddProvider(t, "analyst@example.com", model.PermissionViewAnalytics)

	addReferral(t, f, f.AddSlot(t, time.Hour, model.SlotStatusBooked), model.ReferralStatusBooked)
	f.AddSlot(t, 2*time.Hour, model.SlotStatusOpen)

	for _, rsvps := range []int{1, 2} {
		e := &model.MobileClinicEvent{FacilityID: f.Facility.ID, Capacity: 3, Version: 1}
		for i := 0; i < rsvps; i++ {
			e.RSVPs = append(e.RSVPs, model.RSVP{PatientID: uuid.New(), Status: model.RSVPYes})
		}
		e.Touch(f.Now)
		require.NoError(t, f.Store.Events.Create(ctx, e))
	}

	a, err := svc.ProviderAnalytics(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Referrals["booked"])
	assert.Equal(t, 1, a.Referrals["total"])
	assert.Equal(t, 1, a.Slots["open"])
	assert.Equal(t, 2, a.Slots["total"])
	assert.Equal(t, 2, a.Events.Total)
	assert.Equal(t, 3, a.Events.TotalRSVPs)
	assert.Equal(t, 6, a.Events.TotalCapacity)
	assert.Equal(t, 50.0, a.Events.CapacityUtilization)
}
