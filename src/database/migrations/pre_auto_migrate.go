package migrations

import (
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type columnRename struct {
	table string
	from  string
	to    string
}

// Older deployments wrote the same entity with different column names.
// The canonical names win.
var legacyRenames = []columnRename{
	{table: "trades", from: "quantity", to: "amount"},
	{table: "agent_decisions", from: "agent_name", to: "agent"},
	{table: "positions", from: "quantity", to: "amount"},
}

// PrepareLegacyColumns renames drifted columns and drops duplicate candles so
// AutoMigrate can add the canonical columns and the natural-key unique index.
// Only postgres deployments carry legacy tables.
func PrepareLegacyColumns(db *gorm.DB) error {
	if db == nil || db.Dialector.Name() != "postgres" {
		return nil
	}

	for _, r := range legacyRenames {
		_, fromExists, err := lookupColumnType(db, r.table, r.from)
		if err != nil {
			return fmt.Errorf("inspect %s.%s: %w", r.table, r.from, err)
		}
		if !fromExists {
			continue
		}

		_, toExists, err := lookupColumnType(db, r.table, r.to)
		if err != nil {
			return fmt.Errorf("inspect %s.%s: %w", r.table, r.to, err)
		}
		if toExists {
			continue
		}

		if err := db.Exec(fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", r.table, r.from, r.to)).Error; err != nil {
			return fmt.Errorf("rename %s.%s to %s: %w", r.table, r.from, r.to, err)
		}
	}

	if _, exists, err := lookupColumnType(db, "market_data", "id"); err != nil {
		return fmt.Errorf("inspect market_data.id: %w", err)
	} else if exists {
		if err := db.Exec(`DELETE FROM market_data a USING market_data b
			WHERE a.id > b.id AND a.symbol = b.symbol AND a.timestamp = b.timestamp AND a.exchange = b.exchange`).Error; err != nil {
			return fmt.Errorf("dedupe market_data: %w", err)
		}
	}

	return nil
}

func lookupColumnType(db *gorm.DB, table, column string) (dataType string, exists bool, err error) {
	row := db.Raw(
		`SELECT data_type FROM information_schema.columns WHERE table_name = ? AND column_name = ?`,
		table,
		column,
	).Row()

	if scanErr := row.Scan(&dataType); scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, scanErr
	}

	return dataType, true, nil
}
