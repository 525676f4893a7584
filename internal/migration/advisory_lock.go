package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// advisoryLockKey serializes migrators across orderrecon instances.
const advisoryLockKey int64 = 7_310_554_204

var ErrMigrationLocked = errors.New("migration_locked")

// withAdvisoryLock runs fn while holding the postgres session advisory lock.
// It fails fast with ErrMigrationLocked when another process holds it.
func withAdvisoryLock(ctx context.Context, db *sql.DB, fn func(*sql.Conn) error) error {
	// Advisory locks belong to a session, so lock and unlock on one connection.
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("reserve connection: %w", err)
	}
	defer conn.Close()

	var locked bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", advisoryLockKey).Scan(&locked); err != nil {
		return fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !locked {
		return ErrMigrationLocked
	}
	defer func() {
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", advisoryLockKey)
	}()

	return fn(conn)
}
