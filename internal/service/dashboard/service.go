package dashboard

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
	"github.com/jwalitptl/referral-api/internal/service"
	"github.com/jwalitptl/referral-api/internal/service/facility"
	apperrors "github.com/jwalitptl/referral-api/pkg/errors"
)

const reminderHorizon = 24 * time.Hour

// Service composes read-only views. Each lookup is its own query, so a view
// may mix data from before and after a concurrent write.
type Service struct {
	store      *repository.Store
	facilities facility.Lookup
	now        func() time.Time
}

func NewService(store *repository.Store, facilities facility.Lookup) *Service {
	return &Service{store: store, facilities: facilities, now: time.Now}
}

func (s *Service) PatientAppointments(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	refs, err := s.store.Referrals.List(ctx, model.ReferralFilter{PatientID: &patientID})
	if err != nil {
		return nil, service.RepoError(err, "Referral")
	}

	out := make([]*model.Appointment, 0, len(refs))
	for _, ref := range refs {
		appt, err := s.appointment(ctx, ref)
		if err != nil {
			return nil, err
		}
		out = append(out, appt)
	}
	return out, nil
}

// appointment joins referral, slot, department, provider and facility
func (s *Service) appointment(ctx context.Context, ref *model.Referral) (*model.Appointment, error) {
	appt := &model.Appointment{ID: ref.ID, Status: ref.Status, Referral: ref}

	slot, err := s.store.Slots.Get(ctx, ref.SlotID)
	switch {
	case err == nil:
		appt.Slot = slot
		appt.Date = &slot.StartAt
		appt.End = &slot.EndAt
	case repository.IsNotFound(err):
		// Slot deleted after the referral was cancelled
	default:
		return nil, service.RepoError(err, "Slot")
	}

	deptID := ref.ToDepartmentID
	if slot != nil {
		deptID = slot.DepartmentID
	}
	if dept, err := s.facilities.Department(ctx, deptID); err == nil {
		appt.Department = &dept.Name
		if f, err := s.facilities.Get(ctx, dept.FacilityID); err == nil {
			appt.Facility = &model.NamedRef{ID: f.ID, Name: f.Name}
		}
	} else if !apperrors.HasCode(err, apperrors.ErrNotFound) {
		return nil, err
	}

	providers, err := s.store.Providers.List(ctx, model.ProviderFilter{ActiveOnly: true, DepartmentID: &deptID})
	if err != nil {
		return nil, service.RepoError(err, "Provider")
	}
	if len(providers) > 0 {
		appt.Provider = &model.NamedRef{ID: providers[0].ID, Name: providers[0].Name}
	}
	return appt, nil
}

func (s *Service) PatientReferrals(ctx context.Context, patientID uuid.UUID) ([]*model.PatientReferral, error) {
	refs, err := s.store.Referrals.List(ctx, model.ReferralFilter{PatientID: &patientID})
	if err != nil {
		return nil, service.RepoError(err, "Referral")
	}

	out := make([]*model.PatientReferral, 0, len(refs))
	for _, ref := range refs {
		pr := &model.PatientReferral{Referral: ref}
		if f, err := s.facilities.Get(ctx, ref.FromFacilityID); err == nil {
			pr.FromFacilityName = &f.Name
		}
		if d, err := s.facilities.Department(ctx, ref.ToDepartmentID); err == nil {
			pr.ToDepartmentName = &d.Name
		}
		out = append(out, pr)
	}
	return out, nil
}

// PatientReminders returns live appointments starting within the next day
func (s *Service) PatientReminders(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	appts, err := s.PatientAppointments(ctx, patientID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	until := now.Add(reminderHorizon)
	out := make([]*model.Appointment, 0)
	for _, a := range appts {
		if !a.Status.Active() || a.Date == nil {
			continue
		}
		if !a.Date.Before(now) && a.Date.Before(until) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Service) AdminStats(ctx context.Context) (*model.DashboardStats, error) {
	facilities, err := s.store.Facilities.Count(ctx)
	if err != nil {
		return nil, service.RepoError(err, "Facility")
	}
	providers, err := s.store.Providers.Count(ctx, true)
	if err != nil {
		return nil, service.RepoError(err, "Provider")
	}
	patients, err := s.store.Patients.Count(ctx)
	if err != nil {
		return nil, service.RepoError(err, "Patient")
	}
	counts, err := s.store.Referrals.CountByStatus(ctx, nil)
	if err != nil {
		return nil, service.RepoError(err, "Referral")
	}

	return &model.DashboardStats{
		TotalFacilities: facilities,
		TotalProviders:  providers,
		TotalPatients:   patients,
		ActiveReferrals: counts[model.ReferralStatusBooked] + counts[model.ReferralStatusConfirmed],
	}, nil
}

func (s *Service) ProviderAnalytics(ctx context.Context, p *model.Provider) (*model.ProviderAnalytics, error) {
	refCounts, err := s.store.Referrals.CountByStatus(ctx, &p.FacilityID)
	if err != nil {
		return nil, service.RepoError(err, "Referral")
	}
	slotCounts, err := s.store.Slots.CountByStatus(ctx, &p.FacilityID)
	if err != nil {
		return nil, service.RepoError(err, "Slot")
	}
	events, err := s.store.Events.List(ctx, model.EventFilter{FacilityID: &p.FacilityID})
	if err != nil {
		return nil, service.RepoError(err, "Event")
	}

	out := &model.ProviderAnalytics{
		Referrals: withTotal(refCounts),
		Slots:     withTotal(slotCounts),
		Events:    model.EventAnalytics{Total: len(events)},
	}
	for _, e := range events {
		out.Events.TotalRSVPs += len(e.RSVPs)
		out.Events.TotalCapacity += e.Capacity
	}
	if out.Events.TotalCapacity > 0 {
		pct := float64(out.Events.TotalRSVPs) / float64(out.Events.TotalCapacity) * 100
		out.Events.CapacityUtilization = math.Round(pct*10) / 10
	}
	return out, nil
}

func withTotal[K ~string](counts map[K]int) map[string]int {
	out := make(map[string]int, len(counts)+1)
	total := 0
	for k, v := range counts {
		out[string(k)] = v
		total += v
	}
	out["total"] = total
	return out
}
