package db

import (
	"fmt"

	"gorm.io/gorm"

	"placa-service/internal/config"
)

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS placa_recognitions (
		id              UUID PRIMARY KEY,
		plate           TEXT NOT NULL DEFAULT '',
		plate_key       TEXT NOT NULL DEFAULT '',
		source          TEXT NOT NULL,
		tipo            TEXT NOT NULL,
		homolog         BOOLEAN NOT NULL DEFAULT FALSE,
		detection_count INT NOT NULL DEFAULT 0,
		confidence      NUMERIC(6,5),
		vehicle_brand   TEXT,
		vehicle_model   TEXT,
		vehicle_record  JSONB,
		detections      JSONB,
		snapshot_url    TEXT,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_placa_recognitions_created_at ON placa_recognitions(created_at);`,
	`ALTER TABLE placa_recognitions ADD COLUMN IF NOT EXISTS snapshot_url TEXT;`,
	`ALTER TABLE placa_recognitions ADD COLUMN IF NOT EXISTS plate_key TEXT NOT NULL DEFAULT '';`,
	`UPDATE placa_recognitions
		SET plate_key = regexp_replace(upper(plate), '[^A-Z0-9]', '', 'g')
		WHERE plate_key = '' AND plate <> '';`,
	`DROP INDEX IF EXISTS idx_placa_recognitions_plate_time;`,
	`CREATE INDEX IF NOT EXISTS idx_placa_recognitions_plate_key_time ON placa_recognitions(plate_key, created_at DESC);`,
}

// MySQL has no IF NOT EXISTS for CREATE INDEX, so indexes live in the table body.
var mysqlMigrations = []string{
	`CREATE TABLE IF NOT EXISTS placa_recognitions (
		id              CHAR(36) PRIMARY KEY,
		plate           VARCHAR(16) NOT NULL DEFAULT '',
		plate_key       VARCHAR(16) NOT NULL DEFAULT '',
		source          VARCHAR(16) NOT NULL,
		tipo            VARCHAR(64) NOT NULL,
		homolog         BOOLEAN NOT NULL DEFAULT FALSE,
		detection_count INT NOT NULL DEFAULT 0,
		confidence      DECIMAL(6,5),
		vehicle_brand   VARCHAR(255),
		vehicle_model   VARCHAR(255),
		vehicle_record  JSON,
		detections      JSON,
		snapshot_url    TEXT,
		created_at      DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		INDEX idx_placa_recognitions_created_at (created_at),
		INDEX idx_placa_recognitions_plate_key_time (plate_key, created_at)
	);`,
}

func migrationsFor(driver string) ([]string, error) {
	switch driver {
	case config.DBDriverPostgres:
		return postgresMigrations, nil
	case config.DBDriverMySQL:
		return mysqlMigrations, nil
	default:
		return nil, fmt.Errorf("no migrations for driver %q", driver)
	}
}

func runMigrations(db *gorm.DB, driver string) error {
	statements, err := migrationsFor(driver)
	if err != nil {
		return err
	}
	for i, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
