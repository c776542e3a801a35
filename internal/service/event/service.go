package event

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/referral-api/internal/lock"
	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
	"github.com/jwalitptl/referral-api/internal/service"
	"github.com/jwalitptl/referral-api/internal/service/outbox"
	apperrors "github.com/jwalitptl/referral-api/pkg/errors"
	"github.com/jwalitptl/referral-api/pkg/logger"
	"github.com/jwalitptl/referral-api/pkg/metrics"
)

const rsvpAttempts = 3

var errEventFull = apperrors.NewConflict("Event is full", nil)

type Service struct {
	store   *repository.Store
	emitter *outbox.Emitter
	locker  lock.Locker
	metrics *metrics.Metrics
	logger  *logger.Logger
	now     func() time.Time
}

func NewService(store *repository.Store, emitter *outbox.Emitter, locker lock.Locker, m *metrics.Metrics, log *logger.Logger) *Service {
	return &Service{
		store:   store,
		emitter: emitter,
		locker:  locker,
		metrics: m,
		logger:  log,
		now:     time.Now,
	}
}

func (s *Service) Create(ctx context.Context, p *model.Provider, req *model.CreateEventRequest) (*model.MobileClinicEvent, error) {
	e := &model.MobileClinicEvent{
		FacilityID:  p.FacilityID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Type:        req.Type,
		Location:    req.Location.Normalize(),
		Services:    req.Services,
		StartsAt:    req.StartsAt.UTC(),
		Capacity:    req.Capacity,
		RSVPs:       []model.RSVP{},
		Version:     1,
	}
	e.Touch(s.now().UTC())

	if err := s.store.Events.Create(ctx, e); err != nil {
		return nil, service.RepoError(err, "Event")
	}
	s.logger.Info("Event created", "event_id", e.ID.String(), "facility_id", p.FacilityID.String())
	return e, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.MobileClinicEvent, error) {
	e, err := s.store.Events.Get(ctx, id)
	if err != nil {
		return nil, service.RepoError(err, "Event")
	}
	return e, nil
}

// ListForFacility returns the facility's events, latest start first
func (s *Service) ListForFacility(ctx context.Context, facilityID uuid.UUID) ([]*model.MobileClinicEvent, error) {
	events, err := s.store.Events.List(ctx, model.EventFilter{FacilityID: &facilityID})
	if err != nil {
		return nil, service.RepoError(err, "Event")
	}
	return events, nil
}

// ListForPatient returns the events the patient has confirmed
func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.MobileClinicEvent, error) {
	events, err := s.store.Events.List(ctx, model.EventFilter{PatientID: &patientID})
	if err != nil {
		return nil, service.RepoError(err, "Event")
	}
	return events, nil
}

func (s *Service) owned(ctx context.Context, p *model.Provider, id uuid.UUID) (*model.MobileClinicEvent, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.FacilityID != p.FacilityID {
		return nil, apperrors.NewNotFound("Event", nil)
	}
	return e, nil
}

func (s *Service) Update(ctx context.Context, p *model.Provider, id uuid.UUID, req *model.UpdateEventRequest) (*model.MobileClinicEvent, error) {
	e, err := s.owned(ctx, p, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		e.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		e.Description = *req.Description
	}
	if req.Type != nil {
		e.Type = *req.Type
	}
	if req.Location != nil {
		e.Location = req.Location.Normalize()
	}
	if req.Services != nil {
		e.Services = *req.Services
	}
	if req.StartsAt != nil {
		e.StartsAt = req.StartsAt.UTC()
	}
	if req.Capacity != nil {
		if *req.Capacity < len(e.RSVPs) {
			return nil, apperrors.NewBadRequest("Capacity is below the number of confirmed attendees", nil)
		}
		e.Capacity = *req.Capacity
	}

	if err := s.store.Events.Update(ctx, e); err != nil {
		return nil, service.RepoError(err, "Event")
	}
	return e, nil
}

func (s *Service) Delete(ctx context.Context, p *model.Provider, id uuid.UUID) error {
	if _, err := s.owned(ctx, p, id); err != nil {
		return err
	}
	if err := s.store.Events.Delete(ctx, id); err != nil {
		return service.RepoError(err, "Event")
	}
	s.logger.Info("Event deleted", "event_id", id.String())
	return nil
}

// RSVP removes any entry for the patient and appends a fresh one when the
// action is "yes". Writes are serialized per event and retried on version
// conflicts.
func (s *Service) RSVP(ctx context.Context, eventID, patientID uuid.UUID, action string) (*model.MobileClinicEvent, error) {
	act, ok := model.ParseRSVPAction(action)
	if !ok {
		return nil, apperrors.NewBadRequest("Action must be one of yes, no, cancel", nil)
	}

	var updated *model.MobileClinicEvent
	err := s.locker.WithLock(ctx, lock.Key("event", eventID), func(ctx context.Context) error {
		var err error
		for attempt := 1; attempt <= rsvpAttempts; attempt++ {
			updated, err = s.applyRSVP(ctx, eventID, patientID, act)
			if !errors.Is(err, repository.ErrVersionConflict) {
				return err
			}
			s.logger.Warn("RSVP version conflict, retrying", "event_id", eventID.String(), "attempt", attempt)
		}
		return service.RepoError(err, "Event")
	})
	if err != nil {
		if errors.Is(err, lock.ErrLockNotAcquired) {
			return nil, apperrors.NewConflict("Event is busy, please retry", err)
		}
		return nil, err
	}

	s.metrics.RSVP(string(act))
	return updated, nil
}

// applyRSVP returns repository.ErrVersionConflict unwrapped so RSVP can retry
func (s *Service) applyRSVP(ctx context.Context, eventID, patientID uuid.UUID, act model.RSVPAction) (*model.MobileClinicEvent, error) {
	var e *model.MobileClinicEvent
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if e, err = s.store.Events.Get(ctx, eventID); err != nil {
			return service.RepoError(err, "Event")
		}
		if full := e.ApplyRSVP(patientID, act, s.now().UTC()); full {
			return errEventFull
		}
		if err := s.store.Events.Update(ctx, e); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				return err
			}
			return service.RepoError(err, "Event")
		}

		if err := s.emitter.Emit(ctx, model.EventRSVPUpdated, model.RSVPEvent{
			EventID:   e.ID,
			Title:     e.Title,
			PatientID: patientID,
			Action:    act,
			StartsAt:  e.StartsAt,
		}); err != nil {
			return apperrors.NewInternal(err)
		}
		return nil
	})
	return e, err
}

// PublicRSVP is used by link-based RSVPs. The patient must exist.
func (s *Service) PublicRSVP(ctx context.Context, eventID, patientID uuid.UUID, action string) (*model.MobileClinicEvent, error) {
	if _, err := s.store.Patients.Get(ctx, patientID); err != nil {
		return nil, service.RepoError(err, "Patient")
	}
	return s.RSVP(ctx, eventID, patientID, action)
}

// Details returns the event with each RSVP carrying the patient's contact data
func (s *Service) Details(ctx context.Context, eventID uuid.UUID) (*model.EventDetails, error) {
	e, err := s.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(e.RSVPs))
	for _, r := range e.RSVPs {
		ids = append(ids, r.PatientID)
	}
	patients, err := s.store.Patients.GetMany(ctx, ids)
	if err != nil {
		return nil, service.RepoError(err, "Patient")
	}
	byID := make(map[uuid.UUID]*model.Patient, len(patients))
	for _, p := range patients {
		byID[p.ID] = p
	}

	details := &model.EventDetails{MobileClinicEvent: e, RSVPs: make([]model.RSVPDetail, 0, len(e.RSVPs))}
	for _, r := range e.RSVPs {
		d := model.RSVPDetail{PatientID: r.PatientID, Status: r.Status, RespondedAt: r.RespondedAt}
		if p, ok := byID[r.PatientID]; ok {
			d.Name = p.Name
			d.Phone = p.Phone
			d.PreferredLanguage = p.PreferredLanguage
		}
		details.RSVPs = append(details.RSVPs, d)
	}
	return details, nil
}
