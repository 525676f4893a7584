package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	factdomain "github.com/railzwaylabs/orderrecon/internal/factorder/domain"
	runlogdomain "github.com/railzwaylabs/orderrecon/internal/runlog/domain"
	"gorm.io/gorm"
)

// SchemaState describes the schema after a migration pass.
type SchemaState struct {
	Version  uint
	Checksum string
}

// Migrate brings the output schema up to date. Postgres runs the embedded
// migrations under an advisory lock; sqlite is migrated from the models.
func Migrate(ctx context.Context, db *gorm.DB) (SchemaState, error) {
	if db == nil {
		return SchemaState{}, errors.New("migration database handle is required")
	}

	latest, err := LatestMigrationVersion()
	if err != nil {
		return SchemaState{}, err
	}
	checksum, err := MigrationsChecksum()
	if err != nil {
		return SchemaState{}, err
	}
	state := SchemaState{Version: latest, Checksum: checksum}

	if db.Dialector.Name() != "postgres" {
		if err := db.WithContext(ctx).AutoMigrate(&factdomain.FactOrderLine{}, &runlogdomain.Run{}); err != nil {
			return SchemaState{}, fmt.Errorf("auto migrate: %w", err)
		}
		return state, nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return SchemaState{}, err
	}
	if err := RunMigrations(ctx, sqlDB); err != nil {
		return SchemaState{}, err
	}
	return state, nil
}

// RunMigrations applies all embedded migrations to a postgres database.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	latestVersion, err := LatestMigrationVersion()
	if err != nil {
		return err
	}
	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	return withAdvisoryLock(ctx, db, func(conn *sql.Conn) error {
		source, err := iofs.New(sub, ".")
		if err != nil {
			return fmt.Errorf("create migration source: %w", err)
		}
		driver, err := postgres.WithConnection(ctx, conn, &postgres.Config{})
		if err != nil {
			return fmt.Errorf("create migration driver: %w", err)
		}
		// Not closed: conn must outlive the migrator until the lock is released.
		migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}

		if _, err := ensureNotDirty(migrator); err != nil {
			return err
		}
		if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("apply migrations: %w", err)
		}

		current, err := ensureNotDirty(migrator)
		if err != nil {
			return err
		}
		if current != latestVersion {
			return fmt.Errorf("schema version mismatch after migrate: got %d want %d", current, latestVersion)
		}
		return nil
	})
}

var ErrDirtySchema = errors.New("dirty_schema")

func ensureNotDirty(migrator *migrate.Migrate) (uint, error) {
	version, dirty, err := migrator.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, nil
		}
		return 0, fmt.Errorf("read migration version: %w", err)
	}
	if dirty {
		return 0, fmt.Errorf("%w: version %d", ErrDirtySchema, version)
	}
	return version, nil
}
