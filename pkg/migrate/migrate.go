package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/pressly/goose/v3"
)

// DefaultDir holds the Postgres ledger schema. The SQLite dev store is built by AutoMigrate.
const DefaultDir = "pkg/migrate/migrations"

const ledgerDialect = "postgres"

var gooseCommands = map[string]bool{
	"up":     true,
	"down":   true,
	"status": true,
	"redo":   true,
}

// Run applies one goose command to the ledger database.
func Run(ctx context.Context, db *sql.DB, dir string, command string, args ...string) error {
	if !gooseCommands[command] {
		return fmt.Errorf("unsupported migration command %q", command)
	}
	if db == nil {
		return fmt.Errorf("ledger database handle is required")
	}
	if dir == "" {
		return fmt.Errorf("migrations directory is required")
	}
	if err := goose.SetDialect(ledgerDialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
		return fmt.Errorf("ledger migrations %s: %w", command, err)
	}
	return nil
}

// MigrateToVersion moves the ledger schema up or down to a version that exists in dir.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir string, targetVersion string) error {
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("target version %q is not a migration timestamp: %w", targetVersion, err)
	}
	known, err := versions(dir)
	if err != nil {
		return err
	}
	if _, ok := known[targetVersion]; !ok && target != 0 {
		return fmt.Errorf("no migration with version %s in %s", targetVersion, dir)
	}

	if err := goose.SetDialect(ledgerDialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("read ledger schema version: %w", err)
	}

	switch {
	case current == target:
		return nil
	case current < target:
		if err := goose.UpToContext(ctx, db, dir, target); err != nil {
			return fmt.Errorf("migrate ledger up to %d: %w", target, err)
		}
	default:
		// Version 0 rolls back every ledger table.
		if err := goose.DownToContext(ctx, db, dir, target); err != nil {
			return fmt.Errorf("migrate ledger down to %d: %w", target, err)
		}
	}
	return nil
}
