package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
	"github.com/jwalitptl/referral-api/internal/repository/memory"
)

// Fixture is a memory-backed store with one facility, one department and one
// patient already in place
type Fixture struct {
	Store      *repository.Store
	Facility   *model.Facility
	Department *model.Department
	Patient    *model.Patient
	Now        time.Time
}

func NewFixture(t *testing.T) *Fixture {
	t.Helper()

	ctx := context.Background()
	store := memory.New().Store()
	now := time.Now().UTC().Truncate(time.Second)

	fac := &model.Facility{
		Name:     "General Hospital",
		Type:     model.FacilityTypeHospital,
		Location: model.GeoPoint{Type: "Point", Coordinates: []float64{36.8, -1.28}},
	}
	fac.Touch(now)
	dept := &model.Department{ID: uuid.New(), FacilityID: fac.ID, Name: "Cardiology"}
	fac.Departments = []*model.Department{dept}
	require.NoError(t, store.Facilities.Create(ctx, fac))

	f := &Fixture{Store: store, Facility: fac, Department: dept, Now: now}
	f.Patient = f.AddPatient(t, "+254700000001")
	return f
}

func (f *Fixture) AddPatient(t *testing.T, phone string) *model.Patient {
	t.Helper()
	p := &model.Patient{
		Name:              "Patient " + phone,
		Phone:             phone,
		PreferredLanguage: model.DefaultLanguage,
		Consented:         true,
		Notifications:     []*model.Notification{},
	}
	p.Touch(f.Now)
	require.NoError(t, f.Store.Patients.Create(context.Background(), p))
	return p
}

// AddSlot creates a slot in the fixture department starting at offset from now
func (f *Fixture) AddSlot(t *testing.T, offset time.Duration, status model.SlotStatus) *model.Slot {
	t.Helper()
	s := &model.Slot{
		FacilityID:   f.Facility.ID,
		DepartmentID: f.Department.ID,
		StartAt:      f.Now.Add(offset),
		EndAt:        f.Now.Add(offset + 30*time.Minute),
		Status:       status,
		Version:      1,
	}
	s.Touch(f.Now)
	require.NoError(t, f.Store.Slots.Create(context.Background(), s))
	return s
}

// AddProvider creates an active provider attached to the fixture department
func (f *Fixture) AddProvider(t *testing.T, email string, perms ...model.Permission) *model.Provider {
	t.Helper()
	deptID := f.Department.ID
	p := &model.Provider{
		Email:        email,
		PasswordHash: "x",
		Name:         "Dr " + email,
		FacilityID:   f.Facility.ID,
		DepartmentID: &deptID,
		Role:         model.ProviderRoleDoctor,
		Permissions:  perms,
		IsActive:     true,
	}
	if p.Permissions == nil {
		p.Permissions = []model.Permission{}
	}
	p.Touch(f.Now)
	require.NoError(t, f.Store.Providers.Create(context.Background(), p))
	return p
}

// Outbox returns every outbox event, pending or not, of the given type
func (f *Fixture) Outbox(t *testing.T, eventType string) []*model.OutboxEvent {
	t.Helper()
	events, err := f.Store.Outbox.GetPendingEvents(context.Background(), 1000)
	require.NoError(t, err)
	var out []*model.OutboxEvent
	for _, e := range events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}
