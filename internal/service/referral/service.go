package referral

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
	"github.com/jwalitptl/referral-api/internal/service"
	"github.com/jwalitptl/referral-api/internal/service/facility"
	"github.com/jwalitptl/referral-api/internal/service/outbox"
	apperrors "github.com/jwalitptl/referral-api/pkg/errors"
	"github.com/jwalitptl/referral-api/pkg/logger"
	"github.com/jwalitptl/referral-api/pkg/metrics"
)

const analyticsMonths = 6

var activeStatuses = []model.ReferralStatus{model.ReferralStatusBooked, model.ReferralStatusConfirmed}

type Service struct {
	store      *repository.Store
	facilities facility.Lookup
	emitter    *outbox.Emitter
	metrics    *metrics.Metrics
	logger     *logger.Logger
	now        func() time.Time
}

func NewService(store *repository.Store, facilities facility.Lookup, emitter *outbox.Emitter, m *metrics.Metrics, log *logger.Logger) *Service {
	return &Service{
		store:      store,
		facilities: facilities,
		emitter:    emitter,
		metrics:    m,
		logger:     log,
		now:        time.Now,
	}
}

// Create claims the slot and records the referral in one transaction. A slot
// that is missing, taken or in another department is reported as not available.
func (s *Service) Create(ctx context.Context, req *model.CreateReferralRequest) (*model.Referral, error) {
	if _, err := s.facilities.Get(ctx, req.FromFacilityID); err != nil {
		return nil, err
	}
	if _, err := s.facilities.Department(ctx, req.ToDepartmentID); err != nil {
		return nil, err
	}
	if _, err := s.store.Patients.Get(ctx, req.PatientID); err != nil {
		return nil, service.RepoError(err, "Patient")
	}

	ref := &model.Referral{
		FromFacilityID: req.FromFacilityID,
		ToDepartmentID: req.ToDepartmentID,
		PatientID:      req.PatientID,
		SlotID:         req.SlotID,
		Status:         model.ReferralStatusBooked,
		Reason:         strings.TrimSpace(req.Reason),
		Version:        1,
	}
	ref.Touch(s.now().UTC())

	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		slot, err := s.claim(ctx, req.SlotID, req.ToDepartmentID)
		if err != nil {
			return err
		}
		if err := s.store.Referrals.Create(ctx, ref); err != nil {
			// Another live referral already holds the slot
			if errors.Is(err, repository.ErrDuplicate) {
				s.metrics.SlotClaimConflict()
				return apperrors.NewBadRequest(service.MsgSlotNotAvailable, err)
			}
			return service.RepoError(err, "Referral")
		}
		return s.emit(ctx, model.EventReferralBooked, ref, slot, nil)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ReferralTransition(string(model.ReferralStatusBooked))
	s.logger.Info("Referral created",
		"referral_id", ref.ID.String(),
		"slot_id", ref.SlotID.String(),
		"patient_id", ref.PatientID.String())
	return ref, nil
}

// claim books the slot and checks it belongs to the department
func (s *Service) claim(ctx context.Context, slotID, departmentID uuid.UUID) (*model.Slot, error) {
	slot, err := s.store.Slots.Claim(ctx, slotID)
	if err != nil {
		if errors.Is(err, repository.ErrSlotUnavailable) || errors.Is(err, repository.ErrNotFound) {
			s.metrics.SlotClaimConflict()
			return nil, apperrors.NewBadRequest(service.MsgSlotNotAvailable, err)
		}
		return nil, service.RepoError(err, "Slot")
	}
	if slot.DepartmentID != departmentID {
		return nil, apperrors.NewBadRequest(service.MsgSlotNotAvailable, nil)
	}
	return slot, nil
}

func (s *Service) emit(ctx context.Context, eventType string, ref *model.Referral, slot *model.Slot, previous *uuid.UUID) error {
	payload := model.ReferralEvent{
		ReferralID:     ref.ID,
		PatientID:      ref.PatientID,
		FromFacilityID: ref.FromFacilityID,
		ToDepartmentID: ref.ToDepartmentID,
		SlotID:         ref.SlotID,
		PreviousSlotID: previous,
		Status:         ref.Status,
	}
	if slot != nil {
		payload.StartAt = slot.StartAt
		payload.EndAt = slot.EndAt
	}
	if err := s.emitter.Emit(ctx, eventType, payload); err != nil {
		return apperrors.NewInternal(err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Referral, error) {
	ref, err := s.store.Referrals.Get(ctx, id)
	if err != nil {
		return nil, service.RepoError(err, "Referral")
	}
	return ref, nil
}

func (s *Service) List(ctx context.Context, filter model.ReferralFilter) ([]*model.Referral, error) {
	refs, err := s.store.Referrals.List(ctx, filter)
	if err != nil {
		return nil, service.RepoError(err, "Referral")
	}
	return refs, nil
}

// ListForFacility returns the referrals sent from a facility with their
// patient, facility, department and slot resolved
func (s *Service) ListForFacility(ctx context.Context, facilityID uuid.UUID) ([]*model.ReferralView, error) {
	refs, err := s.List(ctx, model.ReferralFilter{FromFacilityID: &facilityID})
	if err != nil {
		return nil, err
	}

	patientIDs := make([]uuid.UUID, 0, len(refs))
	slotIDs := make([]uuid.UUID, 0, len(refs))
	for _, r := range refs {
		patientIDs = append(patientIDs, r.PatientID)
		slotIDs = append(slotIDs, r.SlotID)
	}

	patients, err := s.store.Patients.GetMany(ctx, patientIDs)
	if err != nil {
		return nil, service.RepoError(err, "Patient")
	}
	byPatient := make(map[uuid.UUID]*model.Patient, len(patients))
	for _, p := range patients {
		byPatient[p.ID] = p
	}

	slots := []*model.Slot{}
	if len(slotIDs) > 0 {
		if slots, err = s.store.Slots.List(ctx, model.SlotFilter{IDs: slotIDs}); err != nil {
			return nil, service.RepoError(err, "Slot")
		}
	}
	bySlot := make(map[uuid.UUID]*model.Slot, len(slots))
	for _, sl := range slots {
		bySlot[sl.ID] = sl
	}

	views := make([]*model.ReferralView, 0, len(refs))
	for _, r := range refs {
		view := &model.ReferralView{Referral: r, Slot: bySlot[r.SlotID]}
		if p, ok := byPatient[r.PatientID]; ok {
			view.Patient = p.Summary()
		}
		if f, err := s.facilities.Get(ctx, r.FromFacilityID); err == nil {
			view.FromFacility = &model.NamedRef{ID: f.ID, Name: f.Name}
		}
		if d, err := s.facilities.Department(ctx, r.ToDepartmentID); err == nil {
			view.ToDepartment = &model.NamedRef{ID: d.ID, Name: d.Name}
		}
		views = append(views, view)
	}
	return views, nil
}

// load reads a referral inside a transaction. A patientID restricts access to
// that patient's referrals.
func (s *Service) load(ctx context.Context, id uuid.UUID, patientID *uuid.UUID) (*model.Referral, error) {
	ref, err := s.store.Referrals.Get(ctx, id)
	if err != nil {
		return nil, service.RepoError(err, "Referral")
	}
	if patientID != nil && ref.PatientID != *patientID {
		return nil, apperrors.NewNotFound("Referral", nil)
	}
	return ref, nil
}

// Cancel is terminal. The slot is always freed in the same transaction.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, patientID *uuid.UUID) (*model.Referral, error) {
	var ref *model.Referral
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if ref, err = s.load(ctx, id, patientID); err != nil {
			return err
		}
		if ref.Status == model.ReferralStatusCancelled {
			return apperrors.NewBadRequest("Referral already cancelled", nil)
		}

		slot, err := s.store.Slots.Get(ctx, ref.SlotID)
		if err != nil {
			return service.RepoError(err, "Slot")
		}

		ref.Status = model.ReferralStatusCancelled
		if err := s.store.Referrals.Update(ctx, ref); err != nil {
			return service.RepoError(err, "Referral")
		}
		if err := s.store.Slots.Release(ctx, ref.SlotID); err != nil {
			return service.RepoError(err, "Slot")
		}
		return s.emit(ctx, model.EventReferralCancelled, ref, slot, nil)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ReferralTransition(string(model.ReferralStatusCancelled))
	s.logger.Info("Referral cancelled", "referral_id", id.String(), "slot_id", ref.SlotID.String())
	return ref, nil
}

// Reschedule claims the new slot before releasing the old one
func (s *Service) Reschedule(ctx context.Context, id, newSlotID uuid.UUID, patientID *uuid.UUID) (*model.Referral, error) {
	var ref *model.Referral
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if ref, err = s.load(ctx, id, patientID); err != nil {
			return err
		}
		if ref.Status == model.ReferralStatusCancelled {
			return apperrors.NewBadRequest("Cancelled referrals cannot be rescheduled", nil)
		}
		if ref.SlotID == newSlotID {
			return apperrors.NewBadRequest("Referral already holds this slot", nil)
		}

		slot, err := s.claim(ctx, newSlotID, ref.ToDepartmentID)
		if err != nil {
			return err
		}
		previous := ref.SlotID
		if err := s.store.Slots.Release(ctx, previous); err != nil {
			return service.RepoError(err, "Slot")
		}

		ref.SlotID = newSlotID
		ref.Status = model.ReferralStatusBooked
		ref.ReminderSentAt = nil
		if err := s.store.Referrals.Update(ctx, ref); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperrors.NewBadRequest(service.MsgSlotNotAvailable, err)
			}
			return service.RepoError(err, "Referral")
		}
		return s.emit(ctx, model.EventReferralRescheduled, ref, slot, &previous)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ReferralTransition("rescheduled")
	s.logger.Info("Referral rescheduled", "referral_id", id.String(), "slot_id", newSlotID.String())
	return ref, nil
}

// Confirm moves a booked referral to confirmed
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*model.Referral, error) {
	var ref *model.Referral
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if ref, err = s.load(ctx, id, nil); err != nil {
			return err
		}
		if ref.Status != model.ReferralStatusBooked {
			return apperrors.NewConflict(fmt.Sprintf("Referral is %s, only booked referrals can be confirmed", ref.Status), nil)
		}

		slot, err := s.store.Slots.Get(ctx, ref.SlotID)
		if err != nil {
			return service.RepoError(err, "Slot")
		}

		ref.Status = model.ReferralStatusConfirmed
		if err := s.store.Referrals.Update(ctx, ref); err != nil {
			return service.RepoError(err, "Referral")
		}
		return s.emit(ctx, model.EventReferralConfirmed, ref, slot, nil)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ReferralTransition(string(model.ReferralStatusConfirmed))
	return ref, nil
}

// Analytics returns totals by status and a per-month breakdown covering the
// current month and the five before it
func (s *Service) Analytics(ctx context.Context) (*model.ReferralAnalytics, error) {
	counts, err := s.store.Referrals.CountByStatus(ctx, nil)
	if err != nil {
		return nil, service.RepoError(err, "Referral")
	}

	now := s.now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(analyticsMonths - 1), 0)
	rows, err := s.store.Referrals.MonthlyCounts(ctx, start)
	if err != nil {
		return nil, service.RepoError(err, "Referral")
	}

	monthly := make(map[string]map[model.ReferralStatus]int, analyticsMonths)
	for i := 0; i < analyticsMonths; i++ {
		monthly[start.AddDate(0, i, 0).Format("2006-01")] = map[model.ReferralStatus]int{}
	}
	for _, row := range rows {
		key := fmt.Sprintf("%04d-%02d", row.Year, row.Month)
		if bucket, ok := monthly[key]; ok {
			bucket[row.Status] += row.Count
		}
	}

	return &model.ReferralAnalytics{StatusCounts: counts, Monthly: monthly}, nil
}

// DueReminder is a live referral whose slot starts inside the reminder window
type DueReminder struct {
	Referral *model.Referral
	Slot     *model.Slot
}

func (s *Service) DueReminders(ctx context.Context, window time.Duration) ([]DueReminder, error) {
	refs, err := s.store.Referrals.List(ctx, model.ReferralFilter{
		Statuses:        activeStatuses,
		ReminderPending: true,
	})
	if err != nil {
		return nil, service.RepoError(err, "Referral")
	}
	if len(refs) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.SlotID)
	}
	now := s.now().UTC()
	until := now.Add(window)
	slots, err := s.store.Slots.List(ctx, model.SlotFilter{IDs: ids, StartFrom: &now, StartTo: &until})
	if err != nil {
		return nil, service.RepoError(err, "Slot")
	}
	bySlot := make(map[uuid.UUID]*model.Slot, len(slots))
	for _, sl := range slots {
		bySlot[sl.ID] = sl
	}

	var due []DueReminder
	for _, r := range refs {
		if sl, ok := bySlot[r.SlotID]; ok {
			due = append(due, DueReminder{Referral: r, Slot: sl})
		}
	}
	return due, nil
}

// MarkReminded stamps the referral and emits the reminder event. A referral
// that was changed since it was listed is skipped.
func (s *Service) MarkReminded(ctx context.Context, due DueReminder) (bool, error) {
	sent := false
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		ref, err := s.load(ctx, due.Referral.ID, nil)
		if err != nil {
			return err
		}
		if ref.ReminderSentAt != nil || !ref.Status.Active() || ref.SlotID != due.Slot.ID {
			return nil
		}

		at := s.now().UTC()
		ref.ReminderSentAt = &at
		if err := s.store.Referrals.Update(ctx, ref); err != nil {
			return service.RepoError(err, "Referral")
		}
		sent = true
		return s.emit(ctx, model.EventReferralReminder, ref, due.Slot, nil)
	})
	return sent, err
}
