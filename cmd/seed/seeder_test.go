package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository/memory"
	"github.com/jwalitptl/referral-api/pkg/logger"
	"github.com/jwalitptl/referral-api/pkg/security"
)

func TestSeederRun(t *testing.T) {
	ctx := context.Background()
	store := memory.New().Store()
	hasher := security.NewBcryptHasher(4)

	res, err := NewSeeder(store, hasher, 42, logger.Nop()).Run(ctx, Options{
		Facilities:             2,
		DepartmentsPerFacility: 2,
		SlotsPerDepartment:     10,
		Patients:               5,
		EventsPerFacility:      1,
		Password:               "password123",
		AdminEmail:             "Admin@Example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, &Result{
		Facilities:   2,
		Departments:  4,
		Slots:        40,
		Patients:     5,
		Providers:    4,
		Events:       2,
		Specialities: 2,
	}, res)

	open := model.SlotStatusOpen
	slots, err := store.Slots.List(ctx, model.SlotFilter{Status: &open})
	require.NoError(t, err)
	assert.Len(t, slots, 40)
	for _, s := range slots {
		assert.True(t, s.EndAt.After(s.StartAt))
	}

	admin, err := store.Admins.GetByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.NoError(t, hasher.Compare(admin.PasswordHash, "password123"))

	providers, err := store.Providers.List(ctx, model.ProviderFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, providers, 4)
	assert.True(t, providers[0].HasPermission(model.PermissionManageSlots))
}

func TestSeederRejectsShortPassword(t *testing.T) {
	_, err := NewSeeder(memory.New().Store(), security.NewBcryptHasher(4), 1, logger.Nop()).
		Run(context.Background(), Options{Password: "short", AdminEmail: "a@example.com"})
	assert.ErrorIs(t, err, security.ErrPasswordShort)
}
