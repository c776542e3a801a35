package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/referral-api/internal/model"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewJWTService("secret", time.Hour)
	facilityID := uuid.New()

	token, err := svc.GenerateToken(&model.TokenClaims{
		AccountID:   uuid.New(),
		Type:        model.AccountProvider,
		FacilityID:  &facilityID,
		Permissions: []model.Permission{model.PermissionManageSlots},
	})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, model.AccountProvider, claims.Type)
	assert.Equal(t, facilityID, *claims.FacilityID)
	assert.True(t, claims.HasPermission(model.PermissionManageSlots))
	assert.False(t, claims.HasPermission(model.PermissionViewAnalytics))
}

func TestValidateRejectsForeignSignature(t *testing.T) {
	token, err := NewJWTService("one", time.Hour).GenerateToken(&model.TokenClaims{
		AccountID: uuid.New(),
		Type:      model.AccountAdmin,
	})
	require.NoError(t, err)

	_, err = NewJWTService("two", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewJWTService("one", time.Hour).ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateExpired(t *testing.T) {
	svc := NewJWTService("secret", time.Minute).(*jwtService)
	issued := time.Now().Add(-time.Hour)
	svc.now = func() time.Time { return issued }

	token, err := svc.GenerateToken(&model.TokenClaims{AccountID: uuid.New(), Type: model.AccountPatient})
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestDefaultTTL(t *testing.T) {
	assert.Equal(t, 24*time.Hour, NewJWTService("secret", 0).TTL())
}
