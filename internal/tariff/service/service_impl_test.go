package service

import (
	"context"
	"testing"

	tariffdomain "github.com/smallbiznis/estatebill/internal/tariff/domain"
	"github.com/smallbiznis/estatebill/internal/tariff/repository"
	"github.com/smallbiznis/estatebill/internal/testutil/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestResolverReadsActiveTariffs(t *testing.T) {
	db := dbtest.Open(t)
	seed := dbtest.NewSeeder(t, db, dbtest.Node(t))

	building := seed.Building("Sunrise Tower", 5)
	other := seed.Building("Harbor View", 10)
	management := seed.Tariff(building.ID, "MANAGEMENT", "PER_AREA", "5000")
	seed.Tariff(building.ID, "WATER", "PER_UNIT_METER", "3500")
	seed.Tariff(other.ID, "MANAGEMENT", "FIXED", "100000")

	retired := seed.Tariff(building.ID, "PARKING", "PER_ITEM", "70000")
	require.NoError(t, db.Model(retired).Update("is_active", false).Error)

	svc := New(Params{DB: db, Log: zap.NewNop(), Repo: repository.Provide()})
	ctx := context.Background()

	got, err := svc.Resolve(ctx, building.ID, " MANAGEMENT ")
	require.NoError(t, err)
	assert.Equal(t, management.ID, got.ID)
	assert.True(t, management.UnitPrice.Equal(got.UnitPrice))

	_, err = svc.Resolve(ctx, building.ID, "PARKING")
	assert.ErrorIs(t, err, tariffdomain.ErrTariffMissing)

	set, err := svc.LoadSet(ctx, building.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
	assert.Equal(t, []string{"MANAGEMENT"}, set.NonMeteredFeeTypes())
}

func TestResolverReportsAmbiguity(t *testing.T) {
	db := dbtest.Open(t)
	seed := dbtest.NewSeeder(t, db, dbtest.Node(t))

	building := seed.Building("Sunrise Tower", 5)
	seed.Tariff(building.ID, "CLEANING", "FIXED", "50000")
	seed.Tariff(building.ID, "CLEANING", "FIXED", "60000")

	svc := New(Params{DB: db, Log: zap.NewNop(), Repo: repository.Provide()})

	_, err := svc.Resolve(context.Background(), building.ID, "CLEANING")
	assert.ErrorIs(t, err, tariffdomain.ErrTariffAmbiguous)
	assert.True(t, tariffdomain.IsTariffError(err))
}
