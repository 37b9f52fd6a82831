package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	buildingdomain "github.com/smallbiznis/estatebill/internal/building/domain"
	invoicedomain "github.com/smallbiznis/estatebill/internal/invoice/domain"
	meterdomain "github.com/smallbiznis/estatebill/internal/meter/domain"
	readingdomain "github.com/smallbiznis/estatebill/internal/reading/domain"
	tariffdomain "github.com/smallbiznis/estatebill/internal/tariff/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// RunMigrations applies the embedded postgres migrations.
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
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// Models lists every persisted model in dependency order.
func Models() []any {
	return []any{
		&buildingdomain.Building{},
		&buildingdomain.Apartment{},
		&buildingdomain.Resident{},
		&buildingdomain.ApartmentItem{},
		&meterdomain.Meter{},
		&tariffdomain.PriceQuotation{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
		&readingdomain.MeterReading{},
		&invoicedomain.BillingRunMarker{},
		&invoicedomain.OneTimeCharge{},
	}
}

// AutoMigrate creates the schema from the models for mysql and sqlite.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
