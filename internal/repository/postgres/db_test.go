package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/referral-api/internal/repository/repotest"
)

// Runs only against a disposable database, e.g.
// TEST_POSTGRES_DSN="host=localhost user=postgres dbname=referrals_test sslmode=disable"
func TestStore(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(context.Background(), db))
	// the schema is idempotent
	require.NoError(t, Migrate(context.Background(), db))

	repotest.Run(t, NewStore(db))
}
