package db

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"placa-service/internal/config"
)

func TestNewWithoutDSN(t *testing.T) {
	_, err := New(&config.Config{DB: config.DBConfig{Driver: config.DBDriverPostgres}}, zerolog.Nop())
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("New() error = %v, want ErrNotConfigured", err)
	}
}

func TestHealthCheckNilDB(t *testing.T) {
	if err := HealthCheck(context.Background(), nil); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("HealthCheck(nil) error = %v, want ErrNotConfigured", err)
	}
}

func TestMigrationsFor(t *testing.T) {
	tests := []struct {
		driver  string
		wantErr bool
		want    string
	}{
		{driver: config.DBDriverPostgres, want: "JSONB"},
		{driver: config.DBDriverMySQL, want: "CHAR(36)"},
		{driver: "sqlite", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			stmts, err := migrationsFor(tt.driver)
			if tt.wantErr {
				if err == nil {
					t.Error("migrationsFor() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("migrationsFor() error = %v", err)
			}
			if !strings.Contains(stmts[0], "placa_recognitions") || !strings.Contains(stmts[0], tt.want) {
				t.Errorf("first migration does not create the expected table:\n%s", stmts[0])
			}
			if !strings.Contains(stmts[0], "plate_key") {
				t.Errorf("table has no plate_key column:\n%s", stmts[0])
			}
			indexed := false
			for _, stmt := range stmts {
				if strings.Contains(stmt, "idx_placa_recognitions_plate_key_time") {
					indexed = true
				}
			}
			if !indexed {
				t.Error("no index on plate_key")
			}
		})
	}
}

func TestDialectorFor(t *testing.T) {
	for _, driver := range []string{config.DBDriverPostgres, config.DBDriverMySQL} {
		d, err := dialectorFor(config.DBConfig{Driver: driver, DSN: "dsn"})
		if err != nil || d == nil {
			t.Errorf("dialectorFor(%q) = (%v, %v)", driver, d, err)
			continue
		}
		if d.Name() != driver {
			t.Errorf("dialector name = %q, want %q", d.Name(), driver)
		}
	}
	if _, err := dialectorFor(config.DBConfig{Driver: "oracle"}); err == nil {
		t.Error("dialectorFor(oracle) error = nil")
	}
}
