package migrations

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// DataMigration is one row of the ledger of applied data migrations.
type DataMigration struct {
	ID        string    `gorm:"primaryKey;size:200;column:id"`
	AppliedAt time.Time `gorm:"not null;column:applied_at"`
}

func (DataMigration) TableName() string { return "data_migrations" }

// Migration is a data fix that must run exactly once per store.
type Migration struct {
	ID    string
	Apply func(tx *gorm.DB) error
}

// registry is applied in order. Ids are stable; append only.
var registry = []Migration{
	{ID: "00001_backfill_trade_cost", Apply: backfillTradeCost},
	{ID: "00002_close_empty_positions", Apply: closeEmptyPositions},
}

func ensureDataMigrationsTable(db *gorm.DB) error {
	return db.AutoMigrate(&DataMigration{})
}

// RunOnce applies fn inside a transaction unless migrationID is already in
// the ledger. The ledger row is written in the same transaction.
func RunOnce(db *gorm.DB, migrationID string, fn func(*gorm.DB) error) error {
	switch {
	case db == nil:
		return nil
	case migrationID == "":
		return errors.New("migration id is empty")
	case fn == nil:
		return fmt.Errorf("migration %q has no apply func", migrationID)
	}

	if err := ensureDataMigrationsTable(db); err != nil {
		return fmt.Errorf("ensure data migrations table: %w", err)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		var applied int64
		if err := tx.Model(&DataMigration{}).Where("id = ?", migrationID).Count(&applied).Error; err != nil {
			return fmt.Errorf("check migration %q: %w", migrationID, err)
		}
		if applied > 0 {
			return nil
		}

		if err := fn(tx); err != nil {
			return fmt.Errorf("apply migration %q: %w", migrationID, err)
		}
		if err := tx.Create(&DataMigration{ID: migrationID, AppliedAt: time.Now().UTC()}).Error; err != nil {
			return fmt.Errorf("record migration %q: %w", migrationID, err)
		}
		return nil
	})
}

// Run applies every pending data migration.
func Run(db *gorm.DB) error {
	for _, m := range registry {
		if err := RunOnce(db, m.ID, m.Apply); err != nil {
			return err
		}
	}
	return nil
}

// backfillTradeCost fills cost for trades written before it was recorded.
func backfillTradeCost(tx *gorm.DB) error {
	return tx.Exec("UPDATE trades SET cost = price * amount WHERE cost IS NULL OR cost = 0").Error
}

// closeEmptyPositions closes open positions holding nothing.
func closeEmptyPositions(tx *gorm.DB) error {
	return tx.Exec("UPDATE positions SET status = 'closed' WHERE status = 'open' AND amount <= 0").Error
}
