package database

import (
	"context"
	"fmt"
	"time"

	"cryptoagents/src/database/migrations"
	"cryptoagents/src/model"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MainDB is the shared read/write store used by every agent.
var MainDB *gorm.DB

// Models lists every table owned by the pipeline, in migration order.
func Models() []interface{} {
	return []interface{}{
		&model.Candle{},
		&model.Decision{},
		&model.Trade{},
		&model.Position{},
		&model.RiskSnapshot{},
		&model.Exception{},
		&migrations.DataMigration{},
	}
}

// InitMainDB connects to the shared store and runs migrations.
// Call once at process start, before any repository is built.
func InitMainDB() error {
	config := GetConfig()

	db, err := Open(config)
	if err != nil {
		return err
	}

	MainDB = db
	logrus.WithField("driver", config.Driver).Info("[database] MainDB connection established")

	if err := Migrate(MainDB); err != nil {
		return err
	}

	logrus.Info("[database] MainDB migrations completed")
	return nil
}

// Open dials the store and pings it, retrying a bounded number of times
// with a fixed delay before giving up.
func Open(config Config) (*gorm.DB, error) {
	dialector, err := dialectorFor(config)
	if err != nil {
		return nil, err
	}

	attempts := config.ConnectAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		db, err := connect(dialector, config)
		if err == nil {
			return db, nil
		}
		lastErr = err

		logrus.WithError(err).WithFields(logrus.Fields{
			"attempt":  attempt,
			"attempts": attempts,
		}).Warn("[database] connection attempt failed")

		if attempt < attempts {
			time.Sleep(config.ConnectDelay)
		}
	}

	return nil, fmt.Errorf("connect to %s after %d attempts: %w", config.Driver, attempts, lastErr)
}

func connect(dialector gorm.Dialector, config Config) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.LogLevel(config.GormLogLevel)),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB from gorm: %w", err)
	}
	sqlDB.SetMaxOpenConns(config.poolSize())
	sqlDB.SetMaxIdleConns(config.poolSize())
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return db, nil
}

func dialectorFor(config Config) (gorm.Dialector, error) {
	switch config.Driver {
	case DriverPostgres, "":
		return postgres.Open(config.DatabaseURLMain), nil
	case DriverSQLite:
		return sqlite.Open(config.DatabaseURLMain), nil
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", config.Driver)
	}
}

// Migrate normalizes legacy tables, auto-migrates the canonical schema and
// applies pending data migrations.
func Migrate(db *gorm.DB) error {
	if err := migrations.PrepareLegacyColumns(db); err != nil {
		return fmt.Errorf("failed to prepare legacy columns: %w", err)
	}

	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("failed to run data migrations: %w", err)
	}

	return nil
}
