// Package dbtest opens throwaway in-memory stores for package tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"cryptoagents/src/database"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// New returns a migrated in-memory sqlite store private to the calling test.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Open(database.Config{
		Driver:          database.DriverSQLite,
		DatabaseURLMain: fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		PoolSize:        1,
		ConnectAttempts: 1,
		GormLogLevel:    1,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}
