package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/ses/sesiface"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSES struct {
	sesiface.SESAPI
	mock.Mock
}

func (m *mockSES) SendEmailWithContext(ctx aws.Context, in *ses.SendEmailInput, _ ...request.Option) (*ses.SendEmailOutput, error) {
	args := m.Called(in)
	out, _ := args.Get(0).(*ses.SendEmailOutput)
	return out, args.Error(1)
}

func TestSESSend(t *testing.T) {
	client := &mockSES{}
	client.On("SendEmailWithContext", mock.MatchedBy(func(in *ses.SendEmailInput) bool {
		return aws.StringValue(in.Source) == "noreply@example.org" &&
			len(in.Destination.ToAddresses) == 2 &&
			aws.StringValue(in.Message.Subject.Data) == "Referral booked"
	})).Return(&ses.SendEmailOutput{MessageId: aws.String("m-1")}, nil).Once()

	n := newSESWithClient(SESConfig{Region: "us-east-1", From: "noreply@example.org"}, client)
	err := n.Send(context.Background(), []string{"a@example.org", "b@example.org"}, "Referral booked", "body")
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestSESRejectsEmptyInput(t *testing.T) {
	client := &mockSES{}
	n := newSESWithClient(SESConfig{From: "noreply@example.org"}, client)

	assert.ErrorIs(t, n.Send(context.Background(), nil, "s", "b"), ErrNoRecipients)
	assert.ErrorIs(t, n.Send(context.Background(), []string{"a@example.org"}, "", "b"), ErrNoSubject)
	assert.ErrorIs(t, n.Send(context.Background(), []string{"a@example.org"}, "s", ""), ErrNoBody)
	client.AssertNotCalled(t, "SendEmailWithContext", mock.Anything)
}

type failingNotifier struct {
	calls int
}

func (f *failingNotifier) Send(context.Context, []string, string, string) error {
	f.calls++
	return errors.New("smtp down")
}

func (f *failingNotifier) Name() string { return "failing" }

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &failingNotifier{}
	n := WithBreaker(inner, time.Minute)

	for i := 0; i < 5; i++ {
		assert.Error(t, n.Send(context.Background(), []string{"a@example.org"}, "s", "b"))
	}
	assert.Equal(t, gobreaker.StateOpen, n.(*breakerNotifier).State())

	err := n.Send(context.Background(), []string{"a@example.org"}, "s", "b")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 5, inner.calls)
}

func TestBreakerIgnoresValidationErrors(t *testing.T) {
	n := WithBreaker(NewNull(), time.Minute)
	for i := 0; i < 10; i++ {
		assert.ErrorIs(t, n.Send(context.Background(), nil, "s", "b"), ErrNoRecipients)
	}
	assert.Equal(t, gobreaker.StateClosed, n.(*breakerNotifier).State())
}

func TestNewSMTPRequiresHost(t *testing.T) {
	_, err := NewSMTP(SMTPConfig{Port: 587, From: "noreply@example.org"})
	assert.Error(t, err)

	n, err := NewSMTP(SMTPConfig{Host: "localhost", Port: 587, From: "noreply@example.org"})
	require.NoError(t, err)
	assert.Equal(t, "smtp", n.Name())
}
