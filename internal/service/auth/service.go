package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
	"github.com/jwalitptl/referral-api/internal/service"
	"github.com/jwalitptl/referral-api/pkg/auth"
	apperrors "github.com/jwalitptl/referral-api/pkg/errors"
	"github.com/jwalitptl/referral-api/pkg/logger"
	"github.com/jwalitptl/referral-api/pkg/security"
)

const msgInvalidCredentials = "Invalid credentials"

// Principal is the authenticated caller. Provider is loaded for provider
// tokens so permission and scope changes apply immediately.
type Principal struct {
	Claims   *model.TokenClaims
	Provider *model.Provider
}

type Service struct {
	store  *repository.Store
	jwtSvc auth.JWTService
	hasher security.PasswordHasher
	logger *logger.Logger
	now    func() time.Time
}

func NewService(store *repository.Store, jwtSvc auth.JWTService, hasher security.PasswordHasher, log *logger.Logger) *Service {
	return &Service{
		store:  store,
		jwtSvc: jwtSvc,
		hasher: hasher,
		logger: log,
		now:    time.Now,
	}
}

func (s *Service) issue(claims *model.TokenClaims, account interface{}) (*model.TokenResponse, error) {
	token, err := s.jwtSvc.GenerateToken(claims)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return &model.TokenResponse{
		Token:     token,
		ExpiresIn: int64(s.jwtSvc.TTL().Seconds()),
		Type:      claims.Type,
		Account:   account,
	}, nil
}

// checkPassword hides whether the account or the password was wrong
func (s *Service) checkPassword(hash, password string) error {
	if err := s.hasher.Compare(hash, password); err != nil {
		return apperrors.Unauthorized(msgInvalidCredentials, err)
	}
	return nil
}

// lookupError answers an unknown email exactly like a wrong password
func (s *Service) lookupError(err error, password string) error {
	if repository.IsNotFound(err) {
		return apperrors.Unauthorized(msgInvalidCredentials, s.hasher.CompareMissing(password))
	}
	return service.RepoError(err, "Account")
}

func (s *Service) AdminLogin(ctx context.Context, email, password string) (*model.TokenResponse, error) {
	admin, err := s.store.Admins.GetByEmail(ctx, security.NormalizeEmail(email))
	if err != nil {
		return nil, s.lookupError(err, password)
	}
	if err := s.checkPassword(admin.PasswordHash, password); err != nil {
		return nil, err
	}
	if !admin.IsActive {
		return nil, apperrors.Unauthorized("Account is inactive", nil)
	}

	now := s.now().UTC()
	if err := s.store.Admins.UpdateLastLogin(ctx, admin.ID, now); err != nil {
		s.logger.Error(err, "Failed to record admin login", "admin_id", admin.ID.String())
	}
	admin.LastLogin = &now

	s.logger.Info("Admin logged in", "admin_id", admin.ID.String())
	return s.issue(&model.TokenClaims{
		AccountID: admin.ID,
		Type:      model.AccountAdmin,
		Email:     admin.Email,
		Role:      admin.Role,
	}, admin)
}

func (s *Service) ProviderLogin(ctx context.Context, email, password string) (*model.TokenResponse, error) {
	p, err := s.store.Providers.GetByEmail(ctx, security.NormalizeEmail(email))
	if err != nil {
		return nil, s.lookupError(err, password)
	}
	if err := s.checkPassword(p.PasswordHash, password); err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, apperrors.Unauthorized("Account is inactive", nil)
	}

	now := s.now().UTC()
	p.LastLogin = &now
	if err := s.store.Providers.Update(ctx, p); err != nil {
		s.logger.Error(err, "Failed to record provider login", "provider_id", p.ID.String())
	}

	s.logger.Info("Provider logged in", "provider_id", p.ID.String())
	facilityID := p.FacilityID
	return s.issue(&model.TokenClaims{
		AccountID:    p.ID,
		Type:         model.AccountProvider,
		Email:        p.Email,
		Role:         string(p.Role),
		FacilityID:   &facilityID,
		DepartmentID: p.DepartmentID,
		Permissions:  p.Permissions,
	}, p)
}

func (s *Service) FacilityAdminLogin(ctx context.Context, email, password string) (*model.TokenResponse, error) {
	admin, err := s.store.FacilityAdmins.GetByEmail(ctx, security.NormalizeEmail(email))
	if err != nil {
		return nil, s.lookupError(err, password)
	}
	if err := s.checkPassword(admin.PasswordHash, password); err != nil {
		return nil, err
	}

	facilityID := admin.FacilityID
	return s.issue(&model.TokenClaims{
		AccountID:  admin.ID,
		Type:       model.AccountFacilityAdmin,
		Email:      admin.Email,
		FacilityID: &facilityID,
	}, admin)
}

// PatientLogin authenticates by phone number alone
func (s *Service) PatientLogin(ctx context.Context, phone string) (*model.TokenResponse, error) {
	p, err := s.store.Patients.GetByPhone(ctx, strings.TrimSpace(phone))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewNotFound("Patient", err)
		}
		return nil, service.RepoError(err, "Patient")
	}

	return s.issue(&model.TokenClaims{
		AccountID: p.ID,
		Type:      model.AccountPatient,
	}, p.Summary())
}

// Authenticate verifies the token and re-checks that admin and provider
// accounts still exist and are active
func (s *Service) Authenticate(ctx context.Context, token string) (*Principal, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return nil, apperrors.Unauthorized("Token expired", err)
		}
		return nil, apperrors.Unauthorized("Invalid token", err)
	}

	principal := &Principal{Claims: claims}
	switch claims.Type {
	case model.AccountAdmin:
		admin, err := s.store.Admins.Get(ctx, claims.AccountID)
		if err != nil {
			return nil, s.accountError(err)
		}
		if !admin.IsActive {
			return nil, apperrors.Unauthorized("Account is inactive", nil)
		}

	case model.AccountProvider:
		p, err := s.store.Providers.Get(ctx, claims.AccountID)
		if err != nil {
			return nil, s.accountError(err)
		}
		if !p.IsActive {
			return nil, apperrors.Unauthorized("Account is inactive", nil)
		}
		facilityID := p.FacilityID
		claims.FacilityID = &facilityID
		claims.DepartmentID = p.DepartmentID
		claims.Permissions = p.Permissions
		principal.Provider = p

	case model.AccountPatient, model.AccountFacilityAdmin:

	default:
		return nil, apperrors.Unauthorized("Invalid token", nil)
	}
	return principal, nil
}

// ValidateToken returns the verified claims only
func (s *Service) ValidateToken(ctx context.Context, token string) (*model.TokenClaims, error) {
	p, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	return p.Claims, nil
}

func (s *Service) accountError(err error) error {
	if repository.IsNotFound(err) {
		return apperrors.Unauthorized("Account no longer exists", err)
	}
	return service.RepoError(err, "Account")
}
