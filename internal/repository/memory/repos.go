package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
)

func now() time.Time {
	return time.Now().UTC()
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// facilities

type facilityRepo struct{ db *DB }

func (r *facilityRepo) Create(ctx context.Context, f *model.Facility) error {
	var err error
	r.db.write(ctx, func(t *tables) {
		if _, ok := t.facilities[f.ID]; ok {
			err = repository.ErrDuplicate
			return
		}
		t.facilities[f.ID] = cloneFacility(f)
	})
	return err
}

func (r *facilityRepo) Get(_ context.Context, id uuid.UUID) (*model.Facility, error) {
	var out *model.Facility
	r.db.read(func(t *tables) {
		if f, ok := t.facilities[id]; ok {
			out = cloneFacility(f)
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *facilityRepo) List(_ context.Context) ([]*model.Facility, error) {
	out := []*model.Facility{}
	r.db.read(func(t *tables) {
		for _, f := range t.facilities {
			out = append(out, cloneFacility(f))
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *facilityRepo) Count(_ context.Context) (int, error) {
	var n int
	r.db.read(func(t *tables) { n = len(t.facilities) })
	return n, nil
}

func (r *facilityRepo) AddDepartment(ctx context.Context, d *model.Department) error {
	var err error
	r.db.write(ctx, func(t *tables) {
		f, ok := t.facilities[d.FacilityID]
		if !ok {
			err = repository.ErrNotFound
			return
		}
		dc := *d
		f.Departments = append(f.Departments, &dc)
		f.UpdatedAt = now()
	})
	return err
}

func (r *facilityRepo) GetDepartment(_ context.Context, id uuid.UUID) (*model.Department, error) {
	var out *model.Department
	r.db.read(func(t *tables) {
		for _, f := range t.facilities {
			if d := f.Department(id); d != nil {
				dc := *d
				out = &dc
				return
			}
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

// slots

type slotRepo struct{ db *DB }

func (r *slotRepo) Create(ctx context.Context, s *model.Slot) error {
	var err error
	r.db.write(ctx, func(t *tables) {
		if _, ok := t.slots[s.ID]; ok {
			err = repository.ErrDuplicate
			return
		}
		t.slots[s.ID] = cloneSlot(s)
	})
	return err
}

func (r *slotRepo) Get(_ context.Context, id uuid.UUID) (*model.Slot, error) {
	var out *model.Slot
	r.db.read(func(t *tables) {
		if s, ok := t.slots[id]; ok {
			out = cloneSlot(s)
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *slotRepo) List(_ context.Context, filter model.SlotFilter) ([]*model.Slot, error) {
	out := []*model.Slot{}
	r.db.read(func(t *tables) {
		for _, s := range t.slots {
			if filter.FacilityID != nil && s.FacilityID != *filter.FacilityID {
				continue
			}
			if filter.DepartmentID != nil && s.DepartmentID != *filter.DepartmentID {
				continue
			}
			if filter.Status != nil && s.Status != *filter.Status {
				continue
			}
			if filter.StartFrom != nil && s.StartAt.Before(*filter.StartFrom) {
				continue
			}
			if filter.StartTo != nil && s.StartAt.After(*filter.StartTo) {
				continue
			}
			if filter.IDs != nil && !containsID(filter.IDs, s.ID) {
				continue
			}
			out = append(out, cloneSlot(s))
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (r *slotRepo) Update(ctx context.Context, s *model.Slot) error {
	var err error
	r.db.write(ctx, func(t *tables) {
		stored, ok := t.slots[s.ID]
		if !ok {
			err = repository.ErrNotFound
			return
		}
		if stored.Version != s.Version {
			err = repository.ErrVersionConflict
			return
		}
		s.Version++
		s.UpdatedAt = now()
		stored.StartAt, stored.EndAt, stored.Status = s.StartAt, s.EndAt, s.Status
		stored.Version, stored.UpdatedAt = s.Version, s.UpdatedAt
	})
	return err
}

func (r *slotRepo) Delete(ctx context.Context, id uuid.UUID) error {
	var err error
	r.db.write(ctx, func(t *tables) {
		s, ok := t.slots[id]
		switch {
		case !ok:
			err = repository.ErrNotFound
		case s.Status == model.SlotStatusBooked:
			err = repository.ErrSlotBooked
		default:
			delete(t.slots, id)
		}
	})
	return err
}

func (r *slotRepo) Claim(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	var out *model.Slot
	r.db.write(ctx, func(t *tables) {
		s, ok := t.slots[id]
		if !ok || s.Status != model.SlotStatusOpen {
			return
		}
		s.Status = model.SlotStatusBooked
		s.Version++
		s.UpdatedAt = now()
		out = cloneSlot(s)
	})
	if out == nil {
		return nil, repository.ErrSlotUnavailable
	}
	return out, nil
}

func (r *slotRepo) Release(ctx context.Context, id uuid.UUID) error {
	r.db.write(ctx, func(t *tables) {
		if s, ok := t.slots[id]; ok && s.Status == model.SlotStatusBooked {
			s.Status = model.SlotStatusOpen
			s.Version++
			s.UpdatedAt = now()
		}
	})
	return nil
}

func (r *slotRepo) ReleaseStaleHolds(ctx context.Context, heldBefore time.Time) (int64, error) {
	var n int64
	r.db.write(ctx, func(t *tables) {
		for _, s := range t.slots {
			if s.Status == model.SlotStatusHeld && s.UpdatedAt.Before(heldBefore) {
				s.Status = model.SlotStatusOpen
				s.Version++
				s.UpdatedAt = now()
				n++
			}
		}
	})
	return n, nil
}

func (r *slotRepo) CountByStatus(_ context.Context, facilityID *uuid.UUID) (map[model.SlotStatus]int, error) {
	counts := map[model.SlotStatus]int{}
	r.db.read(func(t *tables) {
		for _, s := range t.slots {
			if facilityID == nil || s.FacilityID == *facilityID {
				counts[s.Status]++
			}
		}
	})
	return counts, nil
}

// referrals

type referralRepo struct{ db *DB }

func (r *referralRepo) Create(ctx context.Context, ref *model.Referral) error {
	var err error
	r.db.write(ctx, func(t *tables) {
		if _, ok := t.referrals[ref.ID]; ok {
			err = repository.ErrDuplicate
			return
		}
		t.referrals[ref.ID] = cloneReferral(ref)
	})
	return err
}

func (r *referralRepo) Get(_ context.Context, id uuid.UUID) (*model.Referral, error) {
	var out *model.Referral
	r.db.read(func(t *tables) {
		if ref, ok := t.referrals[id]; ok {
			out = cloneReferral(ref)
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func referralMatches(ref *model.Referral, f model.ReferralFilter) bool {
	if f.PatientID != nil && ref.PatientID != *f.PatientID {
		return false
	}
	if f.FromFacilityID != nil && ref.FromFacilityID != *f.FromFacilityID {
		return false
	}
	if f.ToDepartmentIDs != nil && !containsID(f.ToDepartmentIDs, ref.ToDepartmentID) {
		return false
	}
	if f.SlotIDs != nil && !containsID(f.SlotIDs, ref.SlotID) {
		return false
	}
	if f.Statuses != nil {
		found := false
		for _, st := range f.Statuses {
			if ref.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.ReminderPending && ref.ReminderSentAt != nil {
		return false
	}
	if f.CreatedSince != nil && ref.CreatedAt.Before(*f.CreatedSince) {
		return false
	}
	return true
}

func (r *referralRepo) List(_ context.Context, filter model.ReferralFilter) ([]*model.Referral, error) {
	out := []*model.Referral{}
	r.db.read(func(t *tables) {
		for _, ref := range t.referrals {
			if referralMatches(ref, filter) {
				out = append(out, cloneReferral(ref))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *referralRepo) Update(ctx context.Context, ref *model.Referral) error {
	var err error
	r.db.write(ctx, func(t *tables) {
		stored, ok := t.referrals[ref.ID]
		if !ok {
			err = repository.ErrNotFound
			return
		}
		if stored.Version != ref.Version {
			err = repository.ErrVersionConflict
			return
		}
		ref.Version++
		ref.UpdatedAt = now()
		t.referrals[ref.ID] = cloneReferral(ref)
	})
	return err
}

func (r *referralRepo) CountByStatus(_ context.Context, fromFacilityID *uuid.UUID) (map[model.ReferralStatus]int, error) {
	counts := map[model.ReferralStatus]int{}
	r.db.read(func(t *tables) {
		for _, ref := range t.referrals {
			if fromFacilityID == nil || ref.FromFacilityID == *fromFacilityID {
				counts[ref.Status]++
			}
		}
	})
	return counts, nil
}

func (r *referralRepo) MonthlyCounts(_ context.Context, since time.Time) ([]model.MonthlyStatusCount, error) {
	type key struct {
		year, month int
		status      model.ReferralStatus
	}
	grouped := map[key]int{}
	r.db.read(func(t *tables) {
		for _, ref := range t.referrals {
			if ref.CreatedAt.Before(since) {
				continue
			}
			grouped[key{ref.CreatedAt.Year(), int(ref.CreatedAt.Month()), ref.Status}]++
		}
	})

	out := make([]model.MonthlyStatusCount, 0, len(grouped))
	for k, n := range grouped {
		out = append(out, model.MonthlyStatusCount{Year: k.year, Month: k.month, Status: k.status, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		if out[i].Month != out[j].Month {
			return out[i].Month < out[j].Month
		}
		return out[i].Status < out[j].Status
	})
	return out, nil
}

// patients

type patientRepo struct{ db *DB }

func (r *patientRepo) Create(ctx context.Context, p *model.Patient) error {
	var err error
	r.db.write(ctx, func(t *tables) {
		for _, existing := range t.patients {
			if existing.ID == p.ID || existing.Phone == p.Phone {
				err = repository.ErrDuplicate
				return
			}
		}
		t.patients[p.ID] = clonePatient(p)
	})
	return err
}

func (r *patientRepo) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	var out *model.Patient
	r.db.read(func(t *tables) {
		if p, ok := t.patients[id]; ok {
			out = clonePatient(p)
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *patientRepo) GetByPhone(_ context.Context, phone string) (*model.Patient, error) {
	var out *model.Patient
	r.db.read(func(t *tables) {
		for _, p := range t.patients {
			if p.Phone == phone {
				out = clonePatient(p)
				return
			}
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *patientRepo) GetMany(_ context.Context, ids []uuid.UUID) ([]*model.Patient, error) {
	out := []*model.Patient{}
	r.db.read(func(t *tables) {
		for _, id := range ids {
			if p, ok := t.patients[id]; ok {
				out = append(out, clonePatient(p))
			}
		}
	})
	return out, nil
}

func (r *patientRepo) List(_ context.Context) ([]*model.Patient, error) {
	out := []*model.Patient{}
	r.db.read(func(t *tables) {
		for _, p := range t.patients {
			out = append(out, clonePatient(p))
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *patientRepo) Count(_ context.Context) (int, error) {
	var n int
	r.db.read(func(t *tables) { n = len(t.patients) })
	return n, nil
}

func (r *patientRepo) AddNotification(ctx context.Context, patientID uuid.UUID, n *model.Notification) error {
	var err error
	r.db.write(ctx, func(t *tables) {
		p, ok := t.patients[patientID]
		if !ok {
			err = repository.ErrNotFound
			return
		}
		nc := *n
		p.Notifications = append(p.Notifications, &nc)
	})
	return err
}

func (r *patientRepo) ClearNotifications(ctx context.Context, patientID uuid.UUID) error {
	var err error
	r.db.write(ctx, func(t *tables) {
		p, ok := t.patients[patientID]
		if !ok {
			err = repository.ErrNotFound
			return
		}
		p.Notifications = nil
	})
	return err
}

// providers

type providerRepo struct{ db *DB }

func (r *providerRepo) Create(ctx context.Context, p *model.Provider) error {
	var err error
	r.db.write(ctx, func(t *tables) {
		for _, existing := range t.providers {
			if existing.ID == p.ID || strings.EqualFold(existing.Email, p.Email) {
				err = repository.ErrDuplicate
				return
			}
		}
		t.providers[p.ID] = cloneProvider(p)
	})
	return err
}

func (r *providerRepo) Get(_ context.Context, id uuid.UUID) (*model.Provider, error) {
	var out *model.Provider
	r.db.read(func(t *tables) {
		if p, ok := t.providers[id]; ok {
			out = cloneProvider(p)
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *providerRepo) GetByEmail(_ context.Context, email string) (*model.Provider, error) {
	var out *model.Provider
	r.db.read(func(t *tables) {
		for _, p := range t.providers {
			if strings.EqualFold(p.Email, email) {
				out = cloneProvider(p)
				return
			}
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *providerRepo) List(_ context.Context, filter model.ProviderFilter) ([]*model.Provider, error) {
	out := []*model.Provider{}
	r.db.read(func(t *tables) {
		for _, p := range t.providers {
			if filter.ActiveOnly && !p.IsActive {
				continue
			}
			if filter.FacilityID != nil && p.FacilityID != *filter.FacilityID {
				continue
			}
			if filter.DepartmentID != nil && (p.DepartmentID == nil || *p.DepartmentID != *filter.DepartmentID) {
				continue
			}
			out = append(out, cloneProvider(p))
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *providerRepo) Update(ctx context.Context, p *model.Provider) error {
	var err error
	r.db.write(ctx, func(t *tables) {
		if _, ok := t.providers[p.ID]; !ok {
			err = repository.ErrNotFound
			return
		}
		p.UpdatedAt = now()
		t.providers[p.ID] = cloneProvider(p)
	})
	return err
}

func (r *providerRepo) Count(_ context.Context, activeOnly bool) (int, error) {
	var n int
	r.db.read(func(t *tables) {
		for _, p := range t.providers {
			if !activeOnly || p.IsActive {
				n++
			}
		}
	})
	return n, nil
}

// admins

type adminRepo struct{ db *DB }

func (r *adminRepo) Create(ctx context.Context, a *model.Admin) error {
	var err error
	r.db.write(ctx, func(t *tables) {
		for _, existing := range t.admins {
			if existing.ID == a.ID || strings.EqualFold(existing.Email, a.Email) {
				err = repository.ErrDuplicate
				return
			}
		}
		t.admins[a.ID] = cloneAdmin(a)
	})
	return err
}

func (r *adminRepo) Get(_ context.Context, id uuid.UUID) (*model.Admin, error) {
	var out *model.Admin
	r.db.read(func(t *tables) {
		if a, ok := t.admins[id]; ok {
			out = cloneAdmin(a)
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *adminRepo) GetByEmail(_ context.Context, email string) (*model.Admin, error) {
	var out *model.Admin
	r.db.read(func(t *tables) {
		for _, a := range t.admins {
			if strings.EqualFold(a.Email, email) {
				out = cloneAdmin(a)
				return
			}
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *adminRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	var err error
	r.db.write(ctx, func(t *tables) {
		a, ok := t.admins[id]
		if !ok {
			err = repository.ErrNotFound
			return
		}
		a.LastLogin = &at
	})
	return err
}

// facility admins

type facilityAdminRepo struct{ db *DB }

func (r *facilityAdminRepo) Create(ctx context.Context, a *model.FacilityAdmin) error {
	var err error
	r.db.write(ctx, func(t *tables) {
		for _, existing := range t.facilityAdmins {
			if existing.ID == a.ID || strings.EqualFold(existing.Email, a.Email) {
				err = repository.ErrDuplicate
				return
			}
		}
		t.facilityAdmins[a.ID] = cloneFacilityAdmin(a)
	})
	return err
}

func (r *facilityAdminRepo) Get(_ context.Context, id uuid.UUID) (*model.FacilityAdmin, error) {
	var out *model.FacilityAdmin
	r.db.read(func(t *tables) {
		if a, ok := t.facilityAdmins[id]; ok {
			out = cloneFacilityAdmin(a)
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *facilityAdminRepo) GetByEmail(_ context.Context, email string) (*model.FacilityAdmin, error) {
	var out *model.FacilityAdmin
	r.db.read(func(t *tables) {
		for _, a := range t.facilityAdmins {
			if strings.EqualFold(a.Email, email) {
				out = cloneFacilityAdmin(a)
				return
			}
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

// events

type eventRepo struct{ db *DB }

func (r *eventRepo) Create(ctx context.Context, e *model.MobileClinicEvent) error {
	var err error
	r.db.write(ctx, func(t *tables) {
		if _, ok := t.events[e.ID]; ok {
			err = repository.ErrDuplicate
			return
		}
		t.events[e.ID] = cloneEvent(e)
	})
	return err
}

func (r *eventRepo) Get(_ context.Context, id uuid.UUID) (*model.MobileClinicEvent, error) {
	var out *model.MobileClinicEvent
	r.db.read(func(t *tables) {
		if e, ok := t.events[id]; ok {
			out = cloneEvent(e)
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *eventRepo) List(_ context.Context, filter model.EventFilter) ([]*model.MobileClinicEvent, error) {
	out := []*model.MobileClinicEvent{}
	r.db.read(func(t *tables) {
		for _, e := range t.events {
			if filter.FacilityID != nil && e.FacilityID != *filter.FacilityID {
				continue
			}
			if filter.PatientID != nil && !e.HasRSVP(*filter.PatientID) {
				continue
			}
			out = append(out, cloneEvent(e))
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.After(out[j].StartsAt) })
	return out, nil
}

func (r *eventRepo) Update(ctx context.Context, e *model.MobileClinicEvent) error {
	var err error
	r.db.write(ctx, func(t *tables) {
		stored, ok := t.events[e.ID]
		if !ok {
			err = repository.ErrNotFound
			return
		}
		if stored.Version != e.Version {
			err = repository.ErrVersionConflict
			return
		}
		e.Version++
		e.UpdatedAt = now()
		t.events[e.ID] = cloneEvent(e)
	})
	return err
}

func (r *eventRepo) Delete(ctx context.Context, id uuid.UUID) error {
	var err error
	r.db.write(ctx, func(t *tables) {
		if _, ok := t.events[id]; !ok {
			err = repository.ErrNotFound
			return
		}
		delete(t.events, id)
	})
	return err
}

// specialities

type specialityRepo struct{ db *DB }

func (r *specialityRepo) Create(ctx context.Context, s *model.Speciality) error {
	var err error
	r.db.write(ctx, func(t *tables) {
		if _, ok := t.specialities[s.ID]; ok {
			err = repository.ErrDuplicate
			return
		}
		t.specialities[s.ID] = cloneSpeciality(s)
	})
	return err
}

func (r *specialityRepo) Get(_ context.Context, id uuid.UUID) (*model.Speciality, error) {
	var out *model.Speciality
	r.db.read(func(t *tables) {
		if s, ok := t.specialities[id]; ok {
			out = cloneSpeciality(s)
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *specialityRepo) List(_ context.Context) ([]*model.Speciality, error) {
	out := []*model.Speciality{}
	r.db.read(func(t *tables) {
		for _, s := range t.specialities {
			out = append(out, cloneSpeciality(s))
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *specialityRepo) Update(ctx context.Context, s *model.Speciality) error {
	var err error
	r.db.write(ctx, func(t *tables) {
		if _, ok := t.specialities[s.ID]; !ok {
			err = repository.ErrNotFound
			return
		}
		s.UpdatedAt = now()
		t.specialities[s.ID] = cloneSpeciality(s)
	})
	return err
}

func (r *specialityRepo) Delete(ctx context.Context, id uuid.UUID) error {
	var err error
	r.db.write(ctx, func(t *tables) {
		if _, ok := t.specialities[id]; !ok {
			err = repository.ErrNotFound
			return
		}
		delete(t.specialities, id)
	})
	return err
}

// outbox

type outboxRepo struct{ db *DB }

func (r *outboxRepo) Create(ctx context.Context, e *model.OutboxEvent) error {
	r.db.write(ctx, func(t *tables) {
		t.outbox[e.ID] = cloneOutbox(e)
	})
	return nil
}

func (r *outboxRepo) GetPendingEvents(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	out := []*model.OutboxEvent{}
	ts := now()
	r.db.read(func(t *tables) {
		for _, e := range t.outbox {
			switch e.Status {
			case model.OutboxStatusPending:
			case model.OutboxStatusRetry:
				if e.RetryAt != nil && e.RetryAt.After(ts) {
					continue
				}
			default:
				continue
			}
			out = append(out, cloneOutbox(e))
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *outboxRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error {
	var err error
	r.db.write(ctx, func(t *tables) {
		e, ok := t.outbox[id]
		if !ok {
			err = repository.ErrNotFound
			return
		}
		ts := now()
		e.Status = status
		e.ErrorMessage = errorMessage
		e.RetryAt = retryAt
		e.UpdatedAt = ts
		if status == model.OutboxStatusRetry {
			e.RetryCount++
		}
		if status == model.OutboxStatusProcessed {
			e.ProcessedAt = &ts
		}
	})
	return err
}

func (r *outboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	r.db.write(ctx, func(t *tables) {
		for id, e := range t.outbox {
			if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
				delete(t.outbox, id)
				n++
			}
		}
	})
	return n, nil
}
