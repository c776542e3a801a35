// Package store opens the repository backend named in configuration
package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/referral-api/internal/config"
	"github.com/jwalitptl/referral-api/internal/repository"
	"github.com/jwalitptl/referral-api/internal/repository/memory"
	"github.com/jwalitptl/referral-api/internal/repository/mongo"
	"github.com/jwalitptl/referral-api/internal/repository/postgres"
)

func Open(ctx context.Context, cfg *config.Config) (*repository.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err := postgres.NewDB(cfg.Database)
		if err != nil {
			return nil, err
		}
		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				db.Close()
				return nil, err
			}
			log.Info().Msg("Database schema applied")
		}
		return postgres.NewStore(db), nil

	case config.DriverMongo:
		client, err := mongo.NewClient(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		if err := mongo.EnsureIndexes(ctx, client.Database(cfg.Mongo.Database)); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return mongo.NewStore(client, cfg.Mongo.Database), nil

	case config.DriverMemory:
		log.Warn().Msg("Using in-memory storage, data is lost on restart")
		return memory.New().Store(), nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
}
