package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	creditdomain "github.com/smallbiznis/giftpool/internal/credit/domain"
	giftdomain "github.com/smallbiznis/giftpool/internal/gift/domain"
	settlementdomain "github.com/smallbiznis/giftpool/internal/settlement/domain"
	"gorm.io/gorm"
)

// Models lists the tables owned by this service, in dependency order.
func Models() []any {
	return []any{
		&giftdomain.Gift{},
		&giftdomain.Contribution{},
		&settlementdomain.Settlement{},
		&creditdomain.Account{},
		&creditdomain.Transaction{},
	}
}

// RunMigrations applies the embedded Postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Close would close the shared *sql.DB.

	return nil
}

// Apply migrates conn with the SQL migrations on Postgres and with
// AutoMigrate on the embedded development drivers.
func Apply(conn *gorm.DB) error {
	if conn.Dialector.Name() != "postgres" {
		return conn.AutoMigrate(Models()...)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}
