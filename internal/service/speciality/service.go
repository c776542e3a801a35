package speciality

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
	"github.com/jwalitptl/referral-api/internal/service"
)

type Service struct {
	repo repository.SpecialityRepository
}

func NewService(repo repository.SpecialityRepository) *Service {
	return &Service{repo: repo}
}

func apply(s *model.Speciality, req *model.SpecialityRequest) {
	s.Name = req.Name
	s.Description = req.Description
	s.Department = req.Department
	s.Services = req.Services
	s.ReferralContact = req.ReferralContact
	s.Notes = req.Notes
	if req.Location != nil {
		s.Location = req.Location.Normalize()
	} else {
		s.Location = s.Location.Normalize()
	}
}

func (s *Service) Create(ctx context.Context, req *model.SpecialityRequest) (*model.Speciality, error) {
	sp := &model.Speciality{}
	apply(sp, req)
	sp.Touch(time.Now().UTC())

	if err := s.repo.Create(ctx, sp); err != nil {
		return nil, service.RepoError(err, "Speciality")
	}
	return sp, nil
}

func (s *Service) List(ctx context.Context) ([]*model.Speciality, error) {
	out, err := s.repo.List(ctx)
	if err != nil {
		return nil, service.RepoError(err, "Speciality")
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Speciality, error) {
	sp, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, service.RepoError(err, "Speciality")
	}
	return sp, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req *model.SpecialityRequest) (*model.Speciality, error) {
	sp, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	apply(sp, req)

	if err := s.repo.Update(ctx, sp); err != nil {
		return nil, service.RepoError(err, "Speciality")
	}
	return sp, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return service.RepoError(err, "Speciality")
	}
	return nil
}
