package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/testutil"
	"github.com/jwalitptl/referral-api/pkg/auth"
	apperrors "github.com/jwalitptl/referral-api/pkg/errors"
	"github.com/jwalitptl/referral-api/pkg/logger"
	"github.com/jwalitptl/referral-api/pkg/security"
)

const password = "correct-horse"

type authSuite struct {
	svc      *Service
	f        *testutil.Fixture
	provider *model.Provider
	admin    *model.Admin
}

func newSuite(t *testing.T) *authSuite {
	f := testutil.NewFixture(t)
	hasher := security.NewBcryptHasher(4)
	hash, err := hasher.Hash(password)
	require.NoError(t, err)

	ctx := context.Background()
	p := f.AddProvider(t, "doc@example.com", model.PermissionCreateReferrals)
	p.PasswordHash = hash
	require.NoError(t, f.Store.Providers.Update(ctx, p))

	admin := &model.Admin{Email: "root@example.com", PasswordHash: hash, Name: "Root", Role: "superadmin", IsActive: true}
	admin.Touch(f.Now)
	require.NoError(t, f.Store.Admins.Create(ctx, admin))

	fa := &model.FacilityAdmin{Email: "fa@example.com", PasswordHash: hash, Name: "FA", FacilityID: f.Facility.ID}
	fa.Touch(f.Now)
	require.NoError(t, f.Store.FacilityAdmins.Create(ctx, fa))

	svc := NewService(f.Store, auth.NewJWTService("test-secret", time.Hour), hasher, logger.Nop())
	return &authSuite{svc: svc, f: f, provider: p, admin: admin}
}

func requireCode(t *testing.T, err error, code apperrors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, code), "got %v", err)
}

func TestProviderLogin(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	resp, err := s.svc.ProviderLogin(ctx, " DOC@example.com ", password)
	require.NoError(t, err)
	assert.Equal(t, model.AccountProvider, resp.Type)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	claims, err := s.svc.ValidateToken(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, s.provider.ID, claims.AccountID)
	assert.True(t, claims.HasPermission(model.PermissionCreateReferrals))

	stored, err := s.f.Store.Providers.Get(ctx, s.provider.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLogin)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	_, err := s.svc.ProviderLogin(ctx, "doc@example.com", "wrong-password")
	requireCode(t, err, apperrors.ErrUnauthorized)

	_, err = s.svc.ProviderLogin(ctx, "nobody@example.com", password)
	requireCode(t, err, apperrors.ErrUnauthorized)

	_, err = s.svc.AdminLogin(ctx, "root@example.com", "nope-nope")
	requireCode(t, err, apperrors.ErrUnauthorized)

	_, err = s.svc.FacilityAdminLogin(ctx, "fa@example.com", "nope-nope")
	requireCode(t, err, apperrors.ErrUnauthorized)
}

type countingHasher struct {
	security.PasswordHasher
	missing int
}

func (h *countingHasher) CompareMissing(password string) error {
	h.missing++
	return h.PasswordHasher.CompareMissing(password)
}

func TestUnknownEmailLooksLikeWrongPassword(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	hasher := &countingHasher{PasswordHasher: security.NewBcryptHasher(4)}
	svc := NewService(s.f.Store, auth.NewJWTService("test-secret", time.Hour), hasher, logger.Nop())

	_, wrong := svc.ProviderLogin(ctx, "doc@example.com", "wrong-password")
	_, unknown := svc.ProviderLogin(ctx, "nobody@example.com", "wrong-password")
	requireCode(t, unknown, apperrors.ErrUnauthorized)
	assert.Equal(t, wrong.Error(), unknown.Error())
	assert.Equal(t, 1, hasher.missing)

	_, err := svc.AdminLogin(ctx, "nobody@example.com", password)
	requireCode(t, err, apperrors.ErrUnauthorized)
	_, err = svc.FacilityAdminLogin(ctx, "nobody@example.com", password)
	requireCode(t, err, apperrors.ErrUnauthorized)
	assert.Equal(t, 3, hasher.missing)
}

func TestInactiveProviderCannotLogInOrUseToken(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	resp, err := s.svc.ProviderLogin(ctx, "doc@example.com", password)
	require.NoError(t, err)

	p, err := s.f.Store.Providers.Get(ctx, s.provider.ID)
	require.NoError(t, err)
	p.IsActive = false
	require.NoError(t, s.f.Store.Providers.Update(ctx, p))

	_, err = s.svc.ValidateToken(ctx, resp.Token)
	requireCode(t, err, apperrors.ErrUnauthorized)

	_, err = s.svc.ProviderLogin(ctx, "doc@example.com", password)
	requireCode(t, err, apperrors.ErrUnauthorized)
}

func TestAuthenticateRefreshesProviderScope(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	resp, err := s.svc.ProviderLogin(ctx, "doc@example.com", password)
	require.NoError(t, err)

	p, err := s.f.Store.Providers.Get(ctx, s.provider.ID)
	require.NoError(t, err)
	p.Permissions = []model.Permission{model.PermissionViewAnalytics}
	require.NoError(t, s.f.Store.Providers.Update(ctx, p))

	principal, err := s.svc.Authenticate(ctx, resp.Token)
	require.NoError(t, err)
	require.NotNil(t, principal.Provider)
	assert.False(t, principal.Claims.HasPermission(model.PermissionCreateReferrals))
	assert.True(t, principal.Claims.HasPermission(model.PermissionViewAnalytics))
}

func TestAdminAndFacilityAdminLogin(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	resp, err := s.svc.AdminLogin(ctx, "root@example.com", password)
	require.NoError(t, err)
	claims, err := s.svc.ValidateToken(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, model.AccountAdmin, claims.Type)

	resp, err = s.svc.FacilityAdminLogin(ctx, "fa@example.com", password)
	require.NoError(t, err)
	claims, err = s.svc.ValidateToken(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, model.AccountFacilityAdmin, claims.Type)
	assert.Equal(t, s.f.Facility.ID, *claims.FacilityID)
}

func TestPatientLogin(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	resp, err := s.svc.PatientLogin(ctx, s.f.Patient.Phone)
	require.NoError(t, err)
	claims, err := s.svc.ValidateToken(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, model.AccountPatient, claims.Type)
	assert.Equal(t, s.f.Patient.ID, claims.AccountID)

	_, err = s.svc.PatientLogin(ctx, "+000")
	requireCode(t, err, apperrors.ErrNotFound)
}

func TestValidateTokenGarbage(t *testing.T) {
	s := newSuite(t)
	_, err := s.svc.ValidateToken(context.Background(), "garbage")
	requireCode(t, err, apperrors.ErrUnauthorized)
}
