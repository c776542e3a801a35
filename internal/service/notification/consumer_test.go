package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/service/facility"
	"github.com/jwalitptl/referral-api/internal/service/outbox"
	"github.com/jwalitptl/referral-api/internal/service/patient"
	"github.com/jwalitptl/referral-api/internal/service/referral"
	"github.com/jwalitptl/referral-api/internal/testutil"
	"github.com/jwalitptl/referral-api/pkg/logger"
	"github.com/jwalitptl/referral-api/pkg/messaging"
	"github.com/jwalitptl/referral-api/pkg/metrics"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Send(ctx context.Context, to []string, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

func (m *mockNotifier) Name() string {
	return "mock"
}

func newConsumer(t *testing.T, mailer *mockNotifier) (*Consumer, *testutil.Fixture) {
	f := testutil.NewFixture(t)
	facilities := facility.NewService(f.Store.Facilities, f.Store.FacilityAdmins, time.Minute, time.Minute, logger.Nop())
	patients := patient.NewService(f.Store.Patients, logger.Nop())
	return NewConsumer(patients, f.Store.Providers, facilities, mailer, metrics.Noop(), zap.NewNop()), f
}

func envelope(t *testing.T, eventType string, payload interface{}) messaging.Message {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	body, err := json.Marshal(model.Envelope{ID: uuid.New(), Type: eventType, OccurredAt: time.Now(), Payload: raw})
	require.NoError(t, err)
	return messaging.Message{Channel: eventType, Payload: body}
}

func referralEvent(f *testutil.Fixture) model.ReferralEvent {
	return model.ReferralEvent{
		ReferralID:     uuid.New(),
		PatientID:      f.Patient.ID,
		FromFacilityID: f.Facility.ID,
		ToDepartmentID: f.Department.ID,
		SlotID:         uuid.New(),
		Status:         model.ReferralStatusBooked,
		StartAt:        f.Now.Add(24 * time.Hour),
	}
}

func notifications(t *testing.T, f *testutil.Fixture) []*model.Notification {
	t.Helper()
	p, err := f.Store.Patients.Get(context.Background(), f.Patient.ID)
	require.NoError(t, err)
	return p.Notifications
}

func TestBookedNotifiesPatientAndProviders(t *testing.T) {
	mailer := &mockNotifier{}
	c, f := newConsumer(t, mailer)
	f.AddProvider(t, "cardio@example.com")

	mailer.On("Send", mock.Anything, []string{"cardio@example.com"}, "New referral booked", mock.AnythingOfType("string")).Return(nil).Once()

	err := c.Handle(context.Background(), envelope(t, model.EventReferralBooked, referralEvent(f)))
	require.NoError(t, err)

	got := notifications(t, f)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Message, "Cardiology")
	mailer.AssertExpectations(t)
}

func TestEmailFailureDoesNotFailHandling(t *testing.T) {
	mailer := &mockNotifier{}
	c, f := newConsumer(t, mailer)
	f.AddProvider(t, "cardio@example.com")

	mailer.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	err := c.Handle(context.Background(), envelope(t, model.EventReferralCancelled, referralEvent(f)))
	require.NoError(t, err)
	assert.Len(t, notifications(t, f), 1)
}

func TestCancelledReferralMessageShowsSlotTime(t *testing.T) {
	mailer := &mockNotifier{}
	c, f := newConsumer(t, mailer)
	ctx := context.Background()
	slot := f.AddSlot(t, 24*time.Hour, model.SlotStatusOpen)

	facilities := facility.NewService(f.Store.Facilities, f.Store.FacilityAdmins, time.Minute, time.Minute, logger.Nop())
	referrals := referral.NewService(f.Store, facilities, outbox.NewEmitter(f.Store.Outbox), metrics.Noop(), logger.Nop())
	ref, err := referrals.Create(ctx, &model.CreateReferralRequest{
		FromFacilityID: f.Facility.ID,
		ToDepartmentID: f.Department.ID,
		PatientID:      f.Patient.ID,
		SlotID:         slot.ID,
	})
	require.NoError(t, err)
	_, err = referrals.Cancel(ctx, ref.ID, nil)
	require.NoError(t, err)

	events := f.Outbox(t, model.EventReferralCancelled)
	require.Len(t, events, 1)
	msg := messaging.Message{Channel: model.EventReferralCancelled, Payload: mustEnvelope(t, events[0])}

	require.NoError(t, c.Handle(ctx, msg))

	got := notifications(t, f)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Message, slot.StartAt.Format(timeLayout))
	assert.NotContains(t, got[0].Message, "0001")
}

func mustEnvelope(t *testing.T, e *model.OutboxEvent) []byte {
	t.Helper()
	body, err := json.Marshal(model.Envelope{ID: e.ID, Type: e.EventType, OccurredAt: e.CreatedAt, Payload: e.Payload})
	require.NoError(t, err)
	return body
}

func TestReminderSkipsEmail(t *testing.T) {
	mailer := &mockNotifier{}
	c, f := newConsumer(t, mailer)
	f.AddProvider(t, "cardio@example.com")

	err := c.Handle(context.Background(), envelope(t, model.EventReferralReminder, referralEvent(f)))
	require.NoError(t, err)

	got := notifications(t, f)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Message, "Reminder")
	mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRSVPNotifications(t *testing.T) {
	c, f := newConsumer(t, &mockNotifier{})
	ctx := context.Background()

	yes := model.RSVPEvent{EventID: uuid.New(), Title: "Eye camp", PatientID: f.Patient.ID, Action: model.RSVPYes, StartsAt: f.Now}
	require.NoError(t, c.Handle(ctx, envelope(t, model.EventRSVPUpdated, yes)))

	no := yes
	no.Action = model.RSVPNo
	require.NoError(t, c.Handle(ctx, envelope(t, model.EventRSVPUpdated, no)))

	got := notifications(t, f)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Message, "Eye camp")
}

func TestHandleErrors(t *testing.T) {
	c, f := newConsumer(t, &mockNotifier{})
	ctx := context.Background()

	err := c.Handle(ctx, messaging.Message{Channel: "x", Payload: []byte("{")})
	assert.Error(t, err)

	e := referralEvent(f)
	e.PatientID = uuid.New()
	err = c.Handle(ctx, envelope(t, model.EventReferralBooked, e))
	assert.Error(t, err)

	err = c.Handle(ctx, envelope(t, "unknown.type", map[string]string{}))
	assert.NoError(t, err)
}
