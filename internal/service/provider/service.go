package provider

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
	"github.com/jwalitptl/referral-api/internal/service"
	"github.com/jwalitptl/referral-api/internal/service/facility"
	apperrors "github.com/jwalitptl/referral-api/pkg/errors"
	"github.com/jwalitptl/referral-api/pkg/logger"
	"github.com/jwalitptl/referral-api/pkg/security"
)

type Service struct {
	repo       repository.ProviderRepository
	facilities facility.Lookup
	hasher     security.PasswordHasher
	logger     *logger.Logger
}

func NewService(repo repository.ProviderRepository, facilities facility.Lookup, hasher security.PasswordHasher, log *logger.Logger) *Service {
	return &Service{
		repo:       repo,
		facilities: facilities,
		hasher:     hasher,
		logger:     log,
	}
}

func (s *Service) Create(ctx context.Context, req *model.CreateProviderRequest) (*model.Provider, error) {
	if _, err := s.facilities.Get(ctx, req.FacilityID); err != nil {
		return nil, err
	}
	if err := s.checkDepartment(ctx, req.FacilityID, req.DepartmentID); err != nil {
		return nil, err
	}

	email := security.NormalizeEmail(req.Email)
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("Provider already exists", nil)
	} else if !repository.IsNotFound(err) {
		return nil, service.RepoError(err, "Provider")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordShort) {
			return nil, apperrors.NewBadRequest("Password must be at least 8 characters", err)
		}
		if errors.Is(err, security.ErrPasswordLong) {
			return nil, apperrors.NewBadRequest("Password must be at most 72 bytes", err)
		}
		return nil, apperrors.NewInternal(err)
	}

	p := &model.Provider{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(req.Name),
		Phone:        req.Phone,
		FacilityID:   req.FacilityID,
		DepartmentID: req.DepartmentID,
		Role:         req.Role,
		Permissions:  req.Permissions,
		IsActive:     true,
	}
	if p.Permissions == nil {
		p.Permissions = []model.Permission{}
	}
	p.Touch(time.Now().UTC())

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, service.RepoError(err, "Provider")
	}

	s.logger.Info("Provider created", "provider_id", p.ID.String(), "facility_id", p.FacilityID.String())
	return p, nil
}

func (s *Service) checkDepartment(ctx context.Context, facilityID uuid.UUID, departmentID *uuid.UUID) error {
	if departmentID == nil {
		return nil
	}
	dept, err := s.facilities.Department(ctx, *departmentID)
	if err != nil {
		return err
	}
	if dept.FacilityID != facilityID {
		return apperrors.NewBadRequest("Department does not belong to the facility", nil)
	}
	return nil
}

// List returns active providers
func (s *Service) List(ctx context.Context) ([]*model.Provider, error) {
	providers, err := s.repo.List(ctx, model.ProviderFilter{ActiveOnly: true})
	if err != nil {
		return nil, service.RepoError(err, "Provider")
	}
	return providers, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Provider, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, service.RepoError(err, "Provider")
	}
	return p, nil
}

// Update applies a partial change. Passwords are never touched here.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *model.UpdateProviderRequest) (*model.Provider, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		p.Phone = *req.Phone
	}
	if req.FacilityID != nil {
		if _, err := s.facilities.Get(ctx, *req.FacilityID); err != nil {
			return nil, err
		}
		p.FacilityID = *req.FacilityID
	}
	if req.DepartmentID != nil {
		p.DepartmentID = req.DepartmentID
	}
	if req.Role != nil {
		p.Role = *req.Role
	}
	if req.Permissions != nil {
		p.Permissions = *req.Permissions
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if err := s.checkDepartment(ctx, p.FacilityID, p.DepartmentID); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, service.RepoError(err, "Provider")
	}
	return p, nil
}

func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	inactive := false
	if _, err := s.Update(ctx, id, &model.UpdateProviderRequest{IsActive: &inactive}); err != nil {
		return err
	}
	s.logger.Info("Provider deactivated", "provider_id", id.String())
	return nil
}
