package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("REFERRAL_JWT_SECRET", "s3cret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, 24*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, "none", cfg.Notify.Driver)
	assert.Equal(t, "/metrics", cfg.Monitoring.MetricsPath)
	assert.Equal(t, 8081, cfg.Monitoring.WorkerPort)
	assert.Empty(t, cfg.Redis.URL)
	assert.False(t, cfg.App.IsProduction())
	assert.NoError(t, cfg.Outbox.ToWorkerConfig().Validate())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("REFERRAL_JWT_SECRET", "s3cret")
	t.Setenv("REFERRAL_APP_ENV", "production")
	t.Setenv("REFERRAL_DATABASE_DRIVER", "memory")
	t.Setenv("REFERRAL_SERVER_PORT", "9090")
	t.Setenv("REFERRAL_OUTBOX_POLL_INTERVAL", "250ms")
	t.Setenv("REFERRAL_DB_PASSWORD", "pw")
	t.Setenv("REFERRAL_REDIS_URL", "redis://cache:6379/0")
	t.Setenv("REFERRAL_SMTP_PASSWORD", "mailpw")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.App.IsProduction())
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Outbox.PollInterval)
	assert.Equal(t, "pw", cfg.Database.Password)
	assert.Contains(t, cfg.Database.DSN(), "password=pw")
	assert.Equal(t, "redis://cache:6379/0", cfg.Redis.URL)
	assert.Equal(t, "redis://cache:6379/0", cfg.Redis.ToBrokerConfig().URL)
	assert.Equal(t, "mailpw", cfg.Notify.SMTP.Password)
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	t.Setenv("REFERRAL_JWT_SECRET", "")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Database: DatabaseConfig{Driver: DriverMongo},
		JWT:      JWTConfig{Secret: "x", TTL: time.Hour},
		Notify:   NotifyConfig{Driver: "ses"},
	}
	assert.NoError(t, valid.Validate())

	bad := valid
	bad.Database.Driver = "sqlite"
	assert.Error(t, bad.Validate())

	bad = valid
	bad.JWT.TTL = 0
	assert.Error(t, bad.Validate())

	bad = valid
	bad.Notify.Driver = "pigeon"
	assert.Error(t, bad.Validate())
}
