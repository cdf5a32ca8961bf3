package database

import (
	"testing"
	"time"

	"cryptoagents/src/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestConfig_poolSize(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 1},
		{-3, 1},
		{3, 3},
		{5, 5},
		{20, 5},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Config{PoolSize: tt.in}.poolSize())
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(Config{Driver: "mysql"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported DATABASE_DRIVER")
}

func TestOpen_GivesUpAfterBoundedAttempts(t *testing.T) {
	start := time.Now()
	_, err := Open(Config{
		Driver:          DriverSQLite,
		DatabaseURLMain: "file:/nonexistent-dir/db.sqlite?mode=ro",
		ConnectAttempts: 2,
		ConnectDelay:    10 * time.Millisecond,
		GormLogLevel:    1,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "after 2 attempts")
	require.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestMigrate_BackfillsTradeCost(t *testing.T) {
	db, err := Open(Config{
		Driver:          DriverSQLite,
		DatabaseURLMain: "file:migrate_backfill?mode=memory&cache=shared",
		PoolSize:        1,
		ConnectAttempts: 1,
		GormLogLevel:    1,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Trade{}))

	require.NoError(t, db.Create(&model.Trade{
		Timestamp: time.Now().UTC(),
		Exchange:  "binance",
		Symbol:    "BTC/USDT",
		Side:      model.TradeSideBuy,
		Price:     decimal.NewFromInt(200),
		Amount:    decimal.RequireFromString("0.5"),
	}).Error)

	require.NoError(t, Migrate(db))
	// second run is a no-op
	require.NoError(t, Migrate(db))

	var trade model.Trade
	require.NoError(t, db.First(&trade).Error)
	require.True(t, trade.Cost.Equal(decimal.NewFromInt(100)), trade.Cost.String())
}
