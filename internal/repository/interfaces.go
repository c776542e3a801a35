package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/referral-api/internal/model"
)

// All repository interfaces in one file
type (
	// Transactor runs fn inside a transaction. Repositories called with the
	// context handed to fn take part in it.
	Transactor interface {
		WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	}

	FacilityRepository interface {
		Create(ctx context.Context, facility *model.Facility) error
		Get(ctx context.Context, id uuid.UUID) (*model.Facility, error)
		List(ctx context.Context) ([]*model.Facility, error)
		Count(ctx context.Context) (int, error)
		AddDepartment(ctx context.Context, department *model.Department) error
		GetDepartment(ctx context.Context, id uuid.UUID) (*model.Department, error)
	}

	SlotRepository interface {
		Create(ctx context.Context, slot *model.Slot) error
		Get(ctx context.Context, id uuid.UUID) (*model.Slot, error)
		List(ctx context.Context, filter model.SlotFilter) ([]*model.Slot, error)
		// Update writes times and status when the stored version matches slot.Version
		Update(ctx context.Context, slot *model.Slot) error
		// Delete removes a slot that is not booked
		Delete(ctx context.Context, id uuid.UUID) error
		// Claim moves an open slot to booked in one conditional write
		Claim(ctx context.Context, id uuid.UUID) (*model.Slot, error)
		// Release moves a booked slot back to open
		Release(ctx context.Context, id uuid.UUID) error
		ReleaseStaleHolds(ctx context.Context, heldBefore time.Time) (int64, error)
		CountByStatus(ctx context.Context, facilityID *uuid.UUID) (map[model.SlotStatus]int, error)
	}

	ReferralRepository interface {
		Create(ctx context.Context, referral *model.Referral) error
		Get(ctx context.Context, id uuid.UUID) (*model.Referral, error)
		List(ctx context.Context, filter model.ReferralFilter) ([]*model.Referral, error)
		// Update writes status, slot and reminder fields when the stored version matches
		Update(ctx context.Context, referral *model.Referral) error
		CountByStatus(ctx context.Context, fromFacilityID *uuid.UUID) (map[model.ReferralStatus]int, error)
		MonthlyCounts(ctx context.Context, since time.Time) ([]model.MonthlyStatusCount, error)
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		GetByPhone(ctx context.Context, phone string) (*model.Patient, error)
		GetMany(ctx context.Context, ids []uuid.UUID) ([]*model.Patient, error)
		List(ctx context.Context) ([]*model.Patient, error)
		Count(ctx context.Context) (int, error)
		AddNotification(ctx context.Context, patientID uuid.UUID, notification *model.Notification) error
		ClearNotifications(ctx context.Context, patientID uuid.UUID) error
	}

	ProviderRepository interface {
		Create(ctx context.Context, provider *model.Provider) error
		Get(ctx context.Context, id uuid.UUID) (*model.Provider, error)
		GetByEmail(ctx context.Context, email string) (*model.Provider, error)
		List(ctx context.Context, filter model.ProviderFilter) ([]*model.Provider, error)
		Update(ctx context.Context, provider *model.Provider) error
		Count(ctx context.Context, activeOnly bool) (int, error)
	}

	AdminRepository interface {
		Create(ctx context.Context, admin *model.Admin) error
		Get(ctx context.Context, id uuid.UUID) (*model.Admin, error)
		GetByEmail(ctx context.Context, email string) (*model.Admin, error)
		UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	}

	FacilityAdminRepository interface {
		Create(ctx context.Context, admin *model.FacilityAdmin) error
		Get(ctx context.Context, id uuid.UUID) (*model.FacilityAdmin, error)
		GetByEmail(ctx context.Context, email string) (*model.FacilityAdmin, error)
	}

	EventRepository interface {
		Create(ctx context.Context, event *model.MobileClinicEvent) error
		Get(ctx context.Context, id uuid.UUID) (*model.MobileClinicEvent, error)
		List(ctx context.Context, filter model.EventFilter) ([]*model.MobileClinicEvent, error)
		// Update replaces the event, RSVPs included, when the stored version matches
		Update(ctx context.Context, event *model.MobileClinicEvent) error
		Delete(ctx context.Context, id uuid.UUID) error
	}

	SpecialityRepository interface {
		Create(ctx context.Context, speciality *model.Speciality) error
		Get(ctx context.Context, id uuid.UUID) (*model.Speciality, error)
		List(ctx context.Context) ([]*model.Speciality, error)
		Update(ctx context.Context, speciality *model.Speciality) error
		Delete(ctx context.Context, id uuid.UUID) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)

// Store bundles every repository of one backend
type Store struct {
	Tx             Transactor
	Facilities     FacilityRepository
	Slots          SlotRepository
	Referrals      ReferralRepository
	Patients       PatientRepository
	Providers      ProviderRepository
	Admins         AdminRepository
	FacilityAdmins FacilityAdminRepository
	Events         EventRepository
	Specialities   SpecialityRepository
	Outbox         OutboxRepository

	// Ping checks the backend is reachable
	Ping func(ctx context.Context) error
	// Close releases the backend's connections
	Close func(ctx context.Context) error
}
