package repo_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/fleet-schedule/internal/domain"
	"github.com/pkordes/fleet-schedule/internal/repo"
	"github.com/pkordes/fleet-schedule/testutil"
)

func TestDriverRepo_UpsertAndList(t *testing.T) {
	r := repo.NewDriverRepo(testutil.NewTx(t))
	ctx := context.Background()

	created, err := r.Upsert(ctx, domain.Driver{
		Name:             "Ivan Petrov",
		Company:          "Petrov Transport",
		DriverCardExpiry: date(2026, 3, 1),
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID, "ID should be minted on create")
	require.NotNil(t, created.DriverCardExpiry)
	assert.Nil(t, created.ADRExpiry)

	created.IsOwn = true
	created.ADRExpiry = date(2026, 5, 1)
	updated, err := r.Upsert(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.True(t, updated.IsOwn)

	_, err = r.Upsert(ctx, domain.Driver{Name: "Anna Koleva"})
	require.NoError(t, err)

	all, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Anna Koleva", all[0].Name, "drivers are ordered by name")
	assert.Equal(t, "Ivan Petrov", all[1].Name)
}

func TestDriverRepo_Delete_NotFound(t *testing.T) {
	r := repo.NewDriverRepo(testutil.NewTx(t))

	err := r.Delete(context.Background(), uuid.New())

	assert.True(t, errors.Is(err, domain.ErrNotFound), "expected ErrNotFound, got %v", err)
}

func TestVehicleRepo_UpsertListDelete(t *testing.T) {
	r := repo.NewVehicleRepo(testutil.NewTx(t))
	ctx := context.Background()

	tractor, err := r.Upsert(ctx, domain.Vehicle{
		Number:          "CA1234AB",
		Kind:            domain.VehicleTractor,
		InsuranceExpiry: date(2026, 1, 15),
	})
	require.NoError(t, err)
	_, err = r.Upsert(ctx, domain.Vehicle{Number: "CA9999XX", Kind: domain.VehicleTanker})
	require.NoError(t, err)

	all, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, domain.VehicleTanker, all[0].Kind, "vehicles are ordered by kind")
	assert.Equal(t, domain.VehicleTractor, all[1].Kind)
	require.NotNil(t, all[1].InsuranceExpiry)

	require.NoError(t, r.Delete(ctx, tractor.ID))
	all, err = r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
