package settings_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/polyswap/polyswap-api/internal/provider"
	"github.com/polyswap/polyswap-api/internal/settings"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&settings.Setting{}))
	return db
}

func TestCommissionRateDefaultsWhenUnset(t *testing.T) {
	service := settings.NewService(newTestDB(t))
	assert.Equal(t, settings.DefaultCommission, service.CommissionRate(context.Background()))
}

func TestSetAndGetCommissionRate(t *testing.T) {
	ctx := context.Background()
	service := settings.NewService(newTestDB(t))

	require.NoError(t, service.SetCommissionRate(ctx, 1.25))
	assert.Equal(t, 1.25, service.CommissionRate(ctx))

	// Last write wins.
	require.NoError(t, service.SetCommissionRate(ctx, 0.75))
	assert.Equal(t, 0.75, service.CommissionRate(ctx))
}

func TestSetCommissionRateRejectsInvalidValues(t *testing.T) {
	ctx := context.Background()
	service := settings.NewService(newTestDB(t))

	for _, rate := range []float64{-0.1, -100} {
		err := service.SetCommissionRate(ctx, rate)
		var validationErr *provider.ValidationError
		require.ErrorAs(t, err, &validationErr)
	}

	// A rejected write must not clobber the stored value.
	assert.Equal(t, settings.DefaultCommission, service.CommissionRate(ctx))
}

func TestZeroCommissionIsAllowed(t *testing.T) {
	ctx := context.Background()
	service := settings.NewService(newTestDB(t))

	require.NoError(t, service.SetCommissionRate(ctx, 0))
	assert.Equal(t, 0.0, service.CommissionRate(ctx))
}

func TestVisitCounter(t *testing.T) {
	ctx := context.Background()
	service := settings.NewService(newTestDB(t))

	assert.Equal(t, int64(0), service.TotalVisits(ctx))
	for i := 0; i < 3; i++ {
		require.NoError(t, service.IncrementVisits(ctx))
	}
	assert.Equal(t, int64(3), service.TotalVisits(ctx))
}
