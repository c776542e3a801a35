package speciality

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/referral-api/pkg/errors"
)

func request(name string) *model.SpecialityRequest {
	return &model.SpecialityRequest{
		Name:            name,
		Description:     "Heart care",
		Department:      "Cardiology",
		Services:        []string{"ECG", "Echo"},
		ReferralContact: "+254700000000",
		Notes:           "Weekdays only",
	}
}

func TestCRUD(t *testing.T) {
	svc := NewService(memory.New().Store().Specialities)
	ctx := context.Background()

	sp, err := svc.Create(ctx, request("Cardiology"))
	require.NoError(t, err)
	assert.Equal(t, "Point", sp.Location.Type)
	assert.Equal(t, []float64{0, 0}, sp.Location.Coordinates)

	req := request("Cardiology & Vascular")
	loc := model.NewGeoPoint(36.8, -1.3)
	req.Location = &loc
	updated, err := svc.Update(ctx, sp.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "Cardiology & Vascular", updated.Name)
	assert.Equal(t, 36.8, updated.Location.Lng())

	got, err := svc.Get(ctx, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Name, got.Name)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.Delete(ctx, sp.ID))
	_, err = svc.Get(ctx, sp.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
	assert.True(t, apperrors.HasCode(svc.Delete(ctx, uuid.New()), apperrors.ErrNotFound))
}
