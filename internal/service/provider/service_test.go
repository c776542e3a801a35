package provider

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/service/facility"
	"github.com/jwalitptl/referral-api/internal/testutil"
	apperrors "github.com/jwalitptl/referral-api/pkg/errors"
	"github.com/jwalitptl/referral-api/pkg/logger"
	"github.com/jwalitptl/referral-api/pkg/security"
)

func newTestService(t *testing.T) (*Service, *testutil.Fixture) {
	f := testutil.NewFixture(t)
	facilities := facility.NewService(f.Store.Facilities, f.Store.FacilityAdmins, time.Minute, time.Minute, logger.Nop())
	return NewService(f.Store.Providers, facilities, security.NewBcryptHasher(4), logger.Nop()), f
}

func createRequest(f *testutil.Fixture) *model.CreateProviderRequest {
	deptID := f.Department.ID
	return &model.CreateProviderRequest{
		Email:        " Nurse@Example.com",
		Password:     "long-enough",
		Name:         "Nurse Joy",
		Phone:        "+254711000000",
		FacilityID:   f.Facility.ID,
		DepartmentID: &deptID,
		Role:         model.ProviderRoleNurse,
		Permissions:  []model.Permission{model.PermissionManageSlots},
	}
}

func TestCreateProvider(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, createRequest(f))
	require.NoError(t, err)
	assert.Equal(t, "nurse@example.com", p.Email)
	assert.True(t, p.IsActive)
	assert.NotEqual(t, "long-enough", p.PasswordHash)

	_, err = svc.Create(ctx, createRequest(f))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict))
}

func TestCreateProviderValidation(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()

	req := createRequest(f)
	req.Password = "short"
	_, err := svc.Create(ctx, req)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))

	req = createRequest(f)
	req.Password = strings.Repeat("x", 73)
	_, err = svc.Create(ctx, req)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))

	req = createRequest(f)
	req.FacilityID = uuid.New()
	_, err = svc.Create(ctx, req)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

	other, err := facility.NewService(f.Store.Facilities, f.Store.FacilityAdmins, time.Minute, time.Minute, logger.Nop()).
		Create(ctx, &model.CreateFacilityRequest{
			Name:        "Elsewhere",
			Type:        model.FacilityTypeClinic,
			Departments: []model.CreateDepartmentRequest{{Name: "ENT"}},
		})
	require.NoError(t, err)
	req = createRequest(f)
	req.DepartmentID = &other.Departments[0].ID
	_, err = svc.Create(ctx, req)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))
}

func TestUpdateAndDeactivate(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, createRequest(f))
	require.NoError(t, err)

	name := "Nurse Joy Senior"
	perms := []model.Permission{model.PermissionViewAnalytics}
	updated, err := svc.Update(ctx, p.ID, &model.UpdateProviderRequest{Name: &name, Permissions: &perms})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, perms, updated.Permissions)
	assert.Equal(t, p.PasswordHash, updated.PasswordHash)

	require.NoError(t, svc.Deactivate(ctx, p.ID))
	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	err = svc.Deactivate(ctx, uuid.New())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}
