package patient

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/testutil"
	apperrors "github.com/jwalitptl/referral-api/pkg/errors"
	"github.com/jwalitptl/referral-api/pkg/logger"
)

func TestRegister(t *testing.T) {
	f := testutil.NewFixture(t)
	svc := NewService(f.Store.Patients, logger.Nop())
	ctx := context.Background()

	p, err := svc.Register(ctx, &model.CreatePatientRequest{Name: " Wanjiru ", Phone: "+254722000000"})
	require.NoError(t, err)
	assert.Equal(t, "Wanjiru", p.Name)
	assert.Equal(t, model.DefaultLanguage, p.PreferredLanguage)

	_, err = svc.Register(ctx, &model.CreatePatientRequest{Name: "Dup", Phone: "+254722000000"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict))

	_, err = svc.Register(ctx, &model.CreatePatientRequest{Name: "NoPhone", Phone: "  "})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestNotifications(t *testing.T) {
	f := testutil.NewFixture(t)
	svc := NewService(f.Store.Patients, logger.Nop())
	sentAt := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return sentAt }
	ctx := context.Background()

	empty, err := svc.Notifications(ctx, f.Patient.ID)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	require.NoError(t, svc.Notify(ctx, f.Patient.ID, "Referral booked"))
	got, err := svc.Notifications(ctx, f.Patient.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, sentAt, got[0].SentAt)

	require.NoError(t, svc.ClearNotifications(ctx, f.Patient.ID))
	got, err = svc.Notifications(ctx, f.Patient.ID)
	require.NoError(t, err)
	assert.Empty(t, got)

	err = svc.Notify(ctx, uuid.New(), "nobody")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}
