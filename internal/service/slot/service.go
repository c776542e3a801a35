package slot

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
	"github.com/jwalitptl/referral-api/internal/service"
	"github.com/jwalitptl/referral-api/internal/service/facility"
	apperrors "github.com/jwalitptl/referral-api/pkg/errors"
	"github.com/jwalitptl/referral-api/pkg/logger"
	"github.com/jwalitptl/referral-api/pkg/metrics"
)

// OpenFilter narrows the public slot listing
type OpenFilter struct {
	DepartmentID *uuid.UUID
	StartFrom    *time.Time
	StartTo      *time.Time
}

type Service struct {
	tx         repository.Transactor
	slots      repository.SlotRepository
	referrals  repository.ReferralRepository
	facilities facility.Lookup
	metrics    *metrics.Metrics
	logger     *logger.Logger
	now        func() time.Time
}

func NewService(store *repository.Store, facilities facility.Lookup, m *metrics.Metrics, log *logger.Logger) *Service {
	return &Service{
		tx:         store.Tx,
		slots:      store.Slots,
		referrals:  store.Referrals,
		facilities: facilities,
		metrics:    m,
		logger:     log,
		now:        time.Now,
	}
}

func (s *Service) ListOpen(ctx context.Context, filter OpenFilter) ([]*model.Slot, error) {
	open := model.SlotStatusOpen
	slots, err := s.slots.List(ctx, model.SlotFilter{
		DepartmentID: filter.DepartmentID,
		Status:       &open,
		StartFrom:    filter.StartFrom,
		StartTo:      filter.StartTo,
	})
	if err != nil {
		return nil, service.RepoError(err, "Slot")
	}
	return slots, nil
}

// providerDepartment resolves the department the provider schedules for
func (s *Service) providerDepartment(ctx context.Context, p *model.Provider) (*model.Department, error) {
	if p.DepartmentID == nil {
		return nil, apperrors.NewBadRequest("Provider is not assigned to a department", nil)
	}
	dept, err := s.facilities.Department(ctx, *p.DepartmentID)
	if err != nil {
		return nil, err
	}
	if dept.FacilityID != p.FacilityID {
		return nil, apperrors.NewBadRequest("Provider department does not belong to their facility", nil)
	}
	return dept, nil
}

func (s *Service) ListForProvider(ctx context.Context, p *model.Provider) (*model.ProviderSlots, error) {
	dept, err := s.providerDepartment(ctx, p)
	if err != nil {
		return nil, err
	}

	slots, err := s.slots.List(ctx, model.SlotFilter{
		FacilityID:   &p.FacilityID,
		DepartmentID: &dept.ID,
	})
	if err != nil {
		return nil, service.RepoError(err, "Slot")
	}

	return &model.ProviderSlots{
		FacilityID:   p.FacilityID,
		DepartmentID: dept.ID,
		Department:   dept.Name,
		Slots:        slots,
	}, nil
}

func (s *Service) Create(ctx context.Context, p *model.Provider, req *model.CreateSlotRequest) (*model.Slot, error) {
	dept, err := s.providerDepartment(ctx, p)
	if err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = model.SlotStatusOpen
	}
	if !status.Settable() {
		return nil, apperrors.NewBadRequest("Status must be one of open, held, closed", nil)
	}
	if !req.EndAt.After(req.StartAt) {
		return nil, apperrors.NewBadRequest("endAt must be after startAt", nil)
	}

	slot := &model.Slot{
		FacilityID:   p.FacilityID,
		DepartmentID: dept.ID,
		StartAt:      req.StartAt.UTC(),
		EndAt:        req.EndAt.UTC(),
		Status:       status,
		Version:      1,
	}
	slot.Touch(s.now().UTC())

	if err := s.slots.Create(ctx, slot); err != nil {
		return nil, service.RepoError(err, "Slot")
	}

	s.logger.Info("Slot created", "slot_id", slot.ID.String(), "department_id", dept.ID.String())
	return slot, nil
}

// ownedSlot hides slots outside the provider's facility and department
func (s *Service) ownedSlot(ctx context.Context, p *model.Provider, id uuid.UUID) (*model.Slot, error) {
	slot, err := s.slots.Get(ctx, id)
	if err != nil {
		return nil, service.RepoError(err, "Slot")
	}
	if slot.FacilityID != p.FacilityID || p.DepartmentID == nil || slot.DepartmentID != *p.DepartmentID {
		return nil, apperrors.NewNotFound("Slot", nil)
	}
	return slot, nil
}

// heldByReferral reports whether a booked or confirmed referral holds the slot
func (s *Service) heldByReferral(ctx context.Context, id uuid.UUID) (bool, error) {
	refs, err := s.referrals.List(ctx, model.ReferralFilter{
		SlotIDs:  []uuid.UUID{id},
		Statuses: []model.ReferralStatus{model.ReferralStatusBooked, model.ReferralStatusConfirmed},
	})
	if err != nil {
		return false, service.RepoError(err, "Referral")
	}
	return len(refs) > 0, nil
}

// Update edits a slot the provider owns. A booked slot only accepts a status
// change, and only once no live referral holds it.
func (s *Service) Update(ctx context.Context, p *model.Provider, id uuid.UUID, req *model.UpdateSlotRequest) (*model.Slot, error) {
	if req.Status != nil && !req.Status.Settable() {
		return nil, apperrors.NewBadRequest("Status must be one of open, held, closed", nil)
	}

	var slot *model.Slot
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		slot, err = s.ownedSlot(ctx, p, id)
		if err != nil {
			return err
		}

		if slot.Status == model.SlotStatusBooked {
			if req.Status == nil || req.StartAt != nil || req.EndAt != nil {
				return apperrors.NewConflict("Booked slots cannot be modified", nil)
			}
			held, err := s.heldByReferral(ctx, id)
			if err != nil {
				return err
			}
			if held {
				return apperrors.NewConflict("Booked slots cannot be modified", nil)
			}
		}

		if req.StartAt != nil {
			slot.StartAt = req.StartAt.UTC()
		}
		if req.EndAt != nil {
			slot.EndAt = req.EndAt.UTC()
		}
		if req.Status != nil {
			slot.Status = *req.Status
		}
		if !slot.EndAt.After(slot.StartAt) {
			return apperrors.NewBadRequest("endAt must be after startAt", nil)
		}

		if err := s.slots.Update(ctx, slot); err != nil {
			return service.RepoError(err, "Slot")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return slot, nil
}

func (s *Service) SetStatus(ctx context.Context, p *model.Provider, id uuid.UUID, status model.SlotStatus) (*model.Slot, error) {
	if !status.Settable() {
		return nil, apperrors.NewBadRequest("Status must be one of open, held, closed", nil)
	}
	return s.Update(ctx, p, id, &model.UpdateSlotRequest{Status: &status})
}

func (s *Service) Delete(ctx context.Context, p *model.Provider, id uuid.UUID) error {
	if _, err := s.ownedSlot(ctx, p, id); err != nil {
		return err
	}
	if err := s.slots.Delete(ctx, id); err != nil {
		return service.RepoError(err, "Slot")
	}
	s.logger.Info("Slot deleted", "slot_id", id.String())
	return nil
}

// Book claims the slot without creating a referral
func (s *Service) Book(ctx context.Context, p *model.Provider, id uuid.UUID) (*model.Slot, error) {
	if _, err := s.ownedSlot(ctx, p, id); err != nil {
		return nil, err
	}
	slot, err := s.slots.Claim(ctx, id)
	if err != nil {
		s.metrics.SlotClaimConflict()
		return nil, service.RepoError(err, "Slot")
	}
	return slot, nil
}

// ReleaseStaleHolds reopens held slots untouched for longer than olderThan
func (s *Service) ReleaseStaleHolds(ctx context.Context, olderThan time.Duration) (int64, error) {
	n, err := s.slots.ReleaseStaleHolds(ctx, s.now().UTC().Add(-olderThan))
	if err != nil {
		return 0, service.RepoError(err, "Slot")
	}
	return n, nil
}
