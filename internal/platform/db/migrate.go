package db

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
)

//go:embed schema.sql
var schema string

// migrationLockKey serialises concurrent Migrate calls across processes.
const migrationLockKey int64 = 0x7762_6d69_6772

// Schema returns the embedded DDL.
func Schema() string {
	return schema
}

// Migrate applies the embedded schema in a single transaction guarded by an
// advisory lock. Every statement is idempotent.
func Migrate(ctx context.Context, b Beginner) error {
	err := WithTx(ctx, b, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockKey); err != nil {
			return fmt.Errorf("lock: %w", err)
		}
		if _, err := tx.Exec(ctx, schema); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("platform/db: migrate: %w", err)
	}
	return nil
}
