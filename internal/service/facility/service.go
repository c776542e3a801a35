package facility

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
	"github.com/jwalitptl/referral-api/internal/service"
	apperrors "github.com/jwalitptl/referral-api/pkg/errors"
	"github.com/jwalitptl/referral-api/pkg/logger"
)

// Lookup resolves facilities and departments for other services
type Lookup interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Facility, error)
	Department(ctx context.Context, id uuid.UUID) (*model.Department, error)
}

type Service struct {
	repo   repository.FacilityRepository
	admins repository.FacilityAdminRepository
	cache  *cache.Cache
	logger *logger.Logger
}

// NewService caches facility and department reads for ttl. Cached values are
// shared, callers must not modify them.
func NewService(repo repository.FacilityRepository, admins repository.FacilityAdminRepository, ttl, cleanup time.Duration, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		admins: admins,
		cache:  cache.New(ttl, cleanup),
		logger: log,
	}
}

func facilityKey(id uuid.UUID) string   { return "facility:" + id.String() }
func departmentKey(id uuid.UUID) string { return "department:" + id.String() }

func (s *Service) Create(ctx context.Context, req *model.CreateFacilityRequest) (*model.Facility, error) {
	f := &model.Facility{
		Name:     strings.TrimSpace(req.Name),
		Type:     req.Type,
		Location: req.Location.Normalize(),
	}
	f.Touch(time.Now().UTC())

	f.Departments = make([]*model.Department, 0, len(req.Departments))
	for _, d := range req.Departments {
		f.Departments = append(f.Departments, &model.Department{
			ID:         uuid.New(),
			FacilityID: f.ID,
			Name:       strings.TrimSpace(d.Name),
		})
	}

	if err := s.repo.Create(ctx, f); err != nil {
		return nil, service.RepoError(err, "Facility")
	}

	s.logger.Info("Facility created", "facility_id", f.ID.String(), "departments", len(f.Departments))
	return f, nil
}

func (s *Service) List(ctx context.Context) ([]*model.Facility, error) {
	facilities, err := s.repo.List(ctx)
	if err != nil {
		return nil, service.RepoError(err, "Facility")
	}
	return facilities, nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, service.RepoError(err, "Facility")
	}
	return n, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Facility, error) {
	if cached, ok := s.cache.Get(facilityKey(id)); ok {
		return cached.(*model.Facility), nil
	}

	f, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, service.RepoError(err, "Facility")
	}
	s.cache.SetDefault(facilityKey(id), f)
	return f, nil
}

func (s *Service) Department(ctx context.Context, id uuid.UUID) (*model.Department, error) {
	if cached, ok := s.cache.Get(departmentKey(id)); ok {
		return cached.(*model.Department), nil
	}

	d, err := s.repo.GetDepartment(ctx, id)
	if err != nil {
		return nil, service.RepoError(err, "Department")
	}
	s.cache.SetDefault(departmentKey(id), d)
	return d, nil
}

func (s *Service) Departments(ctx context.Context, facilityID uuid.UUID) ([]*model.Department, error) {
	f, err := s.Get(ctx, facilityID)
	if err != nil {
		return nil, err
	}
	if f.Departments == nil {
		return []*model.Department{}, nil
	}
	return f.Departments, nil
}

func (s *Service) AddDepartment(ctx context.Context, facilityID uuid.UUID, name string) (*model.Department, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewBadRequest("Department name is required", nil)
	}

	d := &model.Department{
		ID:         uuid.New(),
		FacilityID: facilityID,
		Name:       name,
	}
	if err := s.repo.AddDepartment(ctx, d); err != nil {
		return nil, service.RepoError(err, "Facility")
	}
	s.cache.Delete(facilityKey(facilityID))

	s.logger.Info("Department added", "facility_id", facilityID.String(), "department_id", d.ID.String())
	return d, nil
}

// AdminProfile returns the facility admin with their facility
func (s *Service) AdminProfile(ctx context.Context, adminID uuid.UUID) (*model.FacilityAdminProfile, error) {
	admin, err := s.admins.Get(ctx, adminID)
	if err != nil {
		return nil, service.RepoError(err, "Facility admin")
	}

	profile := &model.FacilityAdminProfile{FacilityAdmin: admin}
	f, err := s.Get(ctx, admin.FacilityID)
	switch {
	case err == nil:
		profile.Facility = f
	case !apperrors.HasCode(err, apperrors.ErrNotFound):
		return nil, err
	}
	return profile, nil
}

// AdminFacility returns the facility managed by the admin
func (s *Service) AdminFacility(ctx context.Context, adminID uuid.UUID) (*model.Facility, error) {
	admin, err := s.admins.Get(ctx, adminID)
	if err != nil {
		return nil, service.RepoError(err, "Facility admin")
	}
	return s.Get(ctx, admin.FacilityID)
}

// AddAdminDepartment adds a department to the admin's own facility
func (s *Service) AddAdminDepartment(ctx context.Context, adminID uuid.UUID, name string) (*model.Department, error) {
	admin, err := s.admins.Get(ctx, adminID)
	if err != nil {
		return nil, service.RepoError(err, "Facility admin")
	}
	return s.AddDepartment(ctx, admin.FacilityID, name)
}
