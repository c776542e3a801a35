package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/referral-api/internal/config"
)

func TestNewMailer(t *testing.T) {
	n, err := NewMailer(config.NotifyConfig{Driver: "none"})
	require.NoError(t, err)
	assert.Equal(t, "null", n.Name())

	n, err = NewMailer(config.NotifyConfig{
		Driver: "smtp",
		From:   "noreply@example.com",
		SMTP:   config.SMTPConfig{Host: "localhost", Port: 1025},
	})
	require.NoError(t, err)
	assert.Equal(t, "smtp", n.Name())

	_, err = NewMailer(config.NotifyConfig{Driver: "smtp"})
	assert.Error(t, err)

	_, err = NewMailer(config.NotifyConfig{Driver: "pigeon"})
	assert.Error(t, err)
}
