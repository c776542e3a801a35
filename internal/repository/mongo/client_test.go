package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/referral-api/internal/config"
	"github.com/jwalitptl/referral-api/internal/repository/repotest"
)

// Transactions need a replica set, so TEST_MONGO_URI must point at one
func TestStore(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}

	ctx := context.Background()
	client, err := NewClient(ctx, config.MongoConfig{URI: uri, Timeout: 10 * time.Second})
	require.NoError(t, err)

	name := "referrals_test_" + uuid.NewString()[:8]
	db := client.Database(name)
	require.NoError(t, EnsureIndexes(ctx, db))
	t.Cleanup(func() {
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})

	repotest.Run(t, NewStore(client, name))
}
