package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/jwalitptl/referral-api/internal/config"
	"github.com/jwalitptl/referral-api/internal/repository"
)

//go:embed schema.sql
var schema string

func NewDB(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// NewStore wires every postgres repository around one connection pool
func NewStore(db *sqlx.DB) *repository.Store {
	base := NewBaseRepository(db)
	return &repository.Store{
		Tx:             base,
		Facilities:     NewFacilityRepository(base),
		Slots:          NewSlotRepository(base),
		Referrals:      NewReferralRepository(base),
		Patients:       NewPatientRepository(base),
		Providers:      NewProviderRepository(base),
		Admins:         NewAdminRepository(base),
		FacilityAdmins: NewFacilityAdminRepository(base),
		Events:         NewEventRepository(base),
		Specialities:   NewSpecialityRepository(base),
		Outbox:         NewOutboxRepository(base),
		Ping:           db.PingContext,
		Close:          func(context.Context) error { return db.Close() },
	}
}
