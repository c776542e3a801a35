package patient

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
	"github.com/jwalitptl/referral-api/internal/service"
	apperrors "github.com/jwalitptl/referral-api/pkg/errors"
	"github.com/jwalitptl/referral-api/pkg/logger"
)

type Service struct {
	repo   repository.PatientRepository
	logger *logger.Logger
	now    func() time.Time
}

func NewService(repo repository.PatientRepository, log *logger.Logger) *Service {
	return &Service{repo: repo, logger: log, now: time.Now}
}

func (s *Service) Register(ctx context.Context, req *model.CreatePatientRequest) (*model.Patient, error) {
	phone := strings.TrimSpace(req.Phone)
	if phone == "" {
		return nil, apperrors.NewBadRequest("Phone is required", nil)
	}
	lang := req.PreferredLanguage
	if lang == "" {
		lang = model.DefaultLanguage
	}

	p := &model.Patient{
		Name:              strings.TrimSpace(req.Name),
		Phone:             phone,
		PreferredLanguage: lang,
		Consented:         req.Consented,
		Notifications:     []*model.Notification{},
	}
	p.Touch(s.now().UTC())

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, service.RepoError(err, "Patient")
	}
	s.logger.Info("Patient registered", "patient_id", p.ID.String())
	return p, nil
}

func (s *Service) List(ctx context.Context) ([]*model.PatientSummary, error) {
	patients, err := s.repo.List(ctx)
	if err != nil {
		return nil, service.RepoError(err, "Patient")
	}
	out := make([]*model.PatientSummary, 0, len(patients))
	for _, p := range patients {
		out = append(out, p.Summary())
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, service.RepoError(err, "Patient")
	}
	return p, nil
}

func (s *Service) Notifications(ctx context.Context, id uuid.UUID) ([]*model.Notification, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Notifications == nil {
		return []*model.Notification{}, nil
	}
	return p.Notifications, nil
}

func (s *Service) ClearNotifications(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.ClearNotifications(ctx, id); err != nil {
		return service.RepoError(err, "Patient")
	}
	return nil
}

// Notify appends an in-app notification to the patient
func (s *Service) Notify(ctx context.Context, id uuid.UUID, message string) error {
	n := &model.Notification{
		ID:      uuid.New(),
		Message: message,
		SentAt:  s.now().UTC(),
	}
	if err := s.repo.AddNotification(ctx, id, n); err != nil {
		return service.RepoError(err, "Patient")
	}
	return nil
}
