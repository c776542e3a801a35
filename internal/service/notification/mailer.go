package notification

import (
	"fmt"
	"time"

	"github.com/jwalitptl/referral-api/internal/config"
	"github.com/jwalitptl/referral-api/pkg/notify"
)

const breakerTimeout = 30 * time.Second

// NewMailer builds the provider email channel selected by cfg.Driver
func NewMailer(cfg config.NotifyConfig) (notify.Notifier, error) {
	var (
		n   notify.Notifier
		err error
	)
	switch cfg.Driver {
	case "smtp":
		n, err = notify.NewSMTP(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.From,
		})
	case "ses":
		n, err = notify.NewSES(notify.SESConfig{Region: cfg.SES.Region, From: cfg.From})
	case "none", "":
		return notify.NewNull(), nil
	default:
		return nil, fmt.Errorf("unknown notify driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return notify.WithBreaker(n, breakerTimeout), nil
}
