package migrate_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/franchisepos-backend/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestTransactionsMigrationEnforcesLedgerInvariants(t *testing.T) {
	content := readMigration(t, "*_create_transactions.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS transactions",
		"CREATE TABLE IF NOT EXISTS line_items",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_transactions_idempotency ON transactions (tenant_id, idempotency_key)",
		"refunds_line_item_id uuid REFERENCES line_items (id)",
		"CONSTRAINT chk_transactions_refund_sign",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestDrawerMigrationAllowsOneOpenShiftPerLocation(t *testing.T) {
	content := readMigration(t, "*_create_cash_drawer_sessions.sql")
	if !strings.Contains(content, "ON cash_drawer_sessions (location_id) WHERE end_time IS NULL") {
		t.Fatal("expected partial unique index on open sessions")
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Refund Reason!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_refund_reason.sql") {
		t.Fatalf("unexpected file name %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}

func TestValidateDirReportsEveryProblem(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("20260301090000_create_refund_reasons.sql", "-- +goose Up\nSELECT 1;\n")
	write("20260301090000_create_tips.sql", "-- +goose Up\n-- +goose Down\n")
	write("Drop Ledger.sql", "-- +goose Up\n-- +goose Down\n")

	err := migrate.ValidateDir(dir)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"missing \"-- +goose Down\"", "already used by", "Drop Ledger.sql"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}

	if err := migrate.ValidateDir(t.TempDir()); err == nil {
		t.Fatal("expected an empty directory to fail")
	}
}

func TestMigrateToVersionRejectsUnknownTarget(t *testing.T) {
	err := migrate.MigrateToVersion(context.Background(), nil, "migrations", "20990101000000")
	if err == nil || !strings.Contains(err.Error(), "no migration with version") {
		t.Fatalf("expected unknown version error, got %v", err)
	}
	if err := migrate.MigrateToVersion(context.Background(), nil, "migrations", "latest"); err == nil {
		t.Fatal("expected non-numeric version to fail")
	}
}

func TestRunRejectsUnsupportedCommand(t *testing.T) {
	err := migrate.Run(context.Background(), nil, "migrations", "reset")
	if err == nil || !strings.Contains(err.Error(), "unsupported migration command") {
		t.Fatalf("expected unsupported command error, got %v", err)
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
