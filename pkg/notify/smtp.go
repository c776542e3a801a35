package notify

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (c SMTPConfig) IsValid() bool {
	return c.Host != "" && c.Port > 0 && c.From != ""
}

type smtpNotifier struct {
	config SMTPConfig
	dialer *gomail.Dialer
}

func NewSMTP(config SMTPConfig) (Notifier, error) {
	if !config.IsValid() {
		return nil, fmt.Errorf("smtp config is invalid")
	}
	return &smtpNotifier{
		config: config,
		dialer: gomail.NewDialer(config.Host, config.Port, config.Username, config.Password),
	}, nil
}

func (s *smtpNotifier) Send(ctx context.Context, to []string, subject, body string) error {
	if err := validate(to, subject, body); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.From)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

func (s *smtpNotifier) Name() string {
	return "smtp"
}
