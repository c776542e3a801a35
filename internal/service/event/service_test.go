package event

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/referral-api/internal/lock"
	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/service/outbox"
	"github.com/jwalitptl/referral-api/internal/testutil"
	apperrors "github.com/jwalitptl/referral-api/pkg/errors"
	"github.com/jwalitptl/referral-api/pkg/logger"
	"github.com/jwalitptl/referral-api/pkg/metrics"
)

type eventSuite struct {
	svc      *Service
	f        *testutil.Fixture
	provider *model.Provider
}

func newSuite(t *testing.T) *eventSuite {
	f := testutil.NewFixture(t)
	svc := NewService(f.Store, outbox.NewEmitter(f.Store.Outbox), lock.NewLocalLocker(), metrics.Noop(), logger.Nop())
	return &eventSuite{
		svc:      svc,
		f:        f,
		provider: f.AddProvider(t, "events@example.com", model.PermissionManageEvents),
	}
}

func (s *eventSuite) createEvent(t *testing.T, capacity int) *model.MobileClinicEvent {
	t.Helper()
	e, err := s.svc.Create(context.Background(), s.provider, &model.CreateEventRequest{
		Title:    "Vaccination drive",
		Type:     model.EventTypeMobileClinic,
		Location: model.NewGeoPoint(36.8, -1.3),
		Services: []string{"vaccination"},
		StartsAt: s.f.Now.Add(72 * time.Hour),
		Capacity: capacity,
	})
	require.NoError(t, err)
	return e
}

func TestRSVPIsIdempotent(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	e := s.createEvent(t, 5)

	for i := 0; i < 3; i++ {
		got, err := s.svc.RSVP(ctx, e.ID, s.f.Patient.ID, "yes")
		require.NoError(t, err)
		require.Len(t, got.RSVPs, 1)
		assert.Equal(t, model.RSVPYes, got.RSVPs[0].Status)
	}

	got, err := s.svc.RSVP(ctx, e.ID, s.f.Patient.ID, "no")
	require.NoError(t, err)
	assert.Empty(t, got.RSVPs)

	got, err = s.svc.RSVP(ctx, e.ID, s.f.Patient.ID, "cancel")
	require.NoError(t, err)
	assert.Empty(t, got.RSVPs)
}

func TestRSVPRejectsUnknownAction(t *testing.T) {
	s := newSuite(t)
	e := s.createEvent(t, 5)

	_, err := s.svc.RSVP(context.Background(), e.ID, s.f.Patient.ID, "maybe")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))
}

func TestRSVPCapacity(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	e := s.createEvent(t, 1)

	_, err := s.svc.RSVP(ctx, e.ID, s.f.Patient.ID, "yes")
	require.NoError(t, err)

	other := s.f.AddPatient(t, "+254700000099")
	_, err = s.svc.RSVP(ctx, e.ID, other.ID, "yes")
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrConflict, appErr.Code)
	assert.Equal(t, "Event is full", appErr.Message)

	// the existing attendee can still re-confirm
	got, err := s.svc.RSVP(ctx, e.ID, s.f.Patient.ID, "yes")
	require.NoError(t, err)
	assert.Len(t, got.RSVPs, 1)
}

func TestConcurrentRSVPsRespectCapacity(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	e := s.createEvent(t, 3)

	patients := make([]*model.Patient, 8)
	for i := range patients {
		patients[i] = s.f.AddPatient(t, fmt.Sprintf("+2547100000%02d", i))
	}

	var wg sync.WaitGroup
	for _, p := range patients {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, _ = s.svc.RSVP(ctx, e.ID, id, "yes")
		}(p.ID)
	}
	wg.Wait()

	got, err := s.svc.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, got.RSVPs, 3)
	assert.Len(t, s.f.Outbox(t, model.EventRSVPUpdated), 3)
}

func TestPublicRSVPRequiresPatient(t *testing.T) {
	s := newSuite(t)
	e := s.createEvent(t, 5)

	_, err := s.svc.PublicRSVP(context.Background(), e.ID, uuid.New(), "yes")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

	_, err = s.svc.PublicRSVP(context.Background(), uuid.New(), s.f.Patient.ID, "yes")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

func TestDetailsEnrichesRSVPs(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	e := s.createEvent(t, 5)

	_, err := s.svc.RSVP(ctx, e.ID, s.f.Patient.ID, "yes")
	require.NoError(t, err)

	details, err := s.svc.Details(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, details.RSVPs, 1)
	assert.Equal(t, s.f.Patient.Phone, details.RSVPs[0].Phone)
	assert.Equal(t, model.DefaultLanguage, details.RSVPs[0].PreferredLanguage)

	mine, err := s.svc.ListForPatient(ctx, s.f.Patient.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, e.ID, mine[0].ID)
}

func TestUpdateAndDeleteScopedToFacility(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	e := s.createEvent(t, 5)

	outsider := *s.provider
	outsider.FacilityID = uuid.New()

	title := "Renamed"
	_, err := s.svc.Update(ctx, &outsider, e.ID, &model.UpdateEventRequest{Title: &title})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

	updated, err := s.svc.Update(ctx, s.provider, e.ID, &model.UpdateEventRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, 2, updated.Version)

	err = s.svc.Delete(ctx, &outsider, e.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

	require.NoError(t, s.svc.Delete(ctx, s.provider, e.ID))
	_, err = s.svc.Get(ctx, e.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

func TestUpdateCapacityBelowAttendees(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	e := s.createEvent(t, 5)

	for _, phone := range []string{"+254711111111", "+254722222222"} {
		p := s.f.AddPatient(t, phone)
		_, err := s.svc.RSVP(ctx, e.ID, p.ID, "yes")
		require.NoError(t, err)
	}

	one := 1
	_, err := s.svc.Update(ctx, s.provider, e.ID, &model.UpdateEventRequest{Capacity: &one})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))
}
