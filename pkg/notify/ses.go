package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/ses/sesiface"
)

const charSet = "UTF-8"

type SESConfig struct {
	Region string
	From   string
}

type sesNotifier struct {
	config SESConfig
	client sesiface.SESAPI
}

// NewSES reads credentials from the usual AWS chain: environment, shared
// profile, then instance role.
func NewSES(config SESConfig) (Notifier, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(config.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}
	return newSESWithClient(config, ses.New(sess)), nil
}

func newSESWithClient(config SESConfig, client sesiface.SESAPI) Notifier {
	return &sesNotifier{config: config, client: client}
}

func (s *sesNotifier) Send(ctx context.Context, to []string, subject, body string) error {
	if err := validate(to, subject, body); err != nil {
		return err
	}

	input := &ses.SendEmailInput{
		Destination: &ses.Destination{
			ToAddresses: aws.StringSlice(to),
		},
		Message: &ses.Message{
			Body: &ses.Body{
				Text: &ses.Content{
					Charset: aws.String(charSet),
					Data:    aws.String(body),
				},
			},
			Subject: &ses.Content{
				Charset: aws.String(charSet),
				Data:    aws.String(subject),
			},
		},
		Source: aws.String(s.config.From),
	}

	if _, err := s.client.SendEmailWithContext(ctx, input); err != nil {
		return fmt.Errorf("failed to send ses email: %w", err)
	}
	return nil
}

func (s *sesNotifier) Name() string {
	return "ses"
}
