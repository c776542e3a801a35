package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/referral-api/internal/config"
	"github.com/jwalitptl/referral-api/internal/repository/store"
	"github.com/jwalitptl/referral-api/pkg/logger"
	"github.com/jwalitptl/referral-api/pkg/security"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to load .env")
	}

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := Options{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the configured database with demo data",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.Driver == config.DriverMemory {
				return errors.New("refusing to seed the in-memory driver")
			}

			appLogger := logger.NewLogger(&logger.Config{
				Level:      logger.ParseLevel(cfg.Log.Level),
				TimeFormat: time.RFC3339,
				Console:    true,
			})

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			db, err := store.Open(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close(context.Background())

			res, err := NewSeeder(db, security.NewBcryptHasher(0), opts.Seed, appLogger).Run(ctx, opts)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"seeded %d facilities, %d departments, %d slots, %d providers, %d patients, %d events, %d specialities\n",
				res.Facilities, res.Departments, res.Slots, res.Providers, res.Patients, res.Events, res.Specialities)
			fmt.Fprintf(cmd.OutOrStdout(), "admin login: %s / %s\n", opts.AdminEmail, opts.Password)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.Facilities, "facilities", 3, "number of facilities")
	flags.IntVar(&opts.DepartmentsPerFacility, "departments", 3, "departments per facility")
	flags.IntVar(&opts.SlotsPerDepartment, "slots", 16, "open slots per department")
	flags.IntVar(&opts.Patients, "patients", 25, "number of patients")
	flags.IntVar(&opts.EventsPerFacility, "events", 2, "events per facility")
	flags.StringVar(&opts.Password, "password", "password123", "password for every seeded account")
	flags.StringVar(&opts.AdminEmail, "admin-email", "admin@referrals.local", "admin account email")
	flags.Uint64Var(&opts.Seed, "seed", 0, "random seed, 0 picks one")

	return cmd
}
