// Package dbtest opens migrated in-memory SQLite databases and seeds the billing roster.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	buildingdomain "github.com/smallbiznis/estatebill/internal/building/domain"
	meterdomain "github.com/smallbiznis/estatebill/internal/meter/domain"
	"github.com/smallbiznis/estatebill/internal/migration"
	tariffdomain "github.com/smallbiznis/estatebill/internal/tariff/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var seq atomic.Int64

// Open returns an isolated, migrated database that lives as long as the test.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:estatebill_%d?mode=memory&cache=shared", seq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migration.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Node returns a snowflake node for test fixtures.
func Node(t testing.TB) *snowflake.Node {
	t.Helper()

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

// Seeder writes roster and tariff fixtures.
type Seeder struct {
	t    testing.TB
	db   *gorm.DB
	node *snowflake.Node
	now  time.Time
}

func NewSeeder(t testing.TB, db *gorm.DB, node *snowflake.Node) *Seeder {
	return &Seeder{t: t, db: db, node: node, now: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
}

func (s *Seeder) create(value any) {
	s.t.Helper()
	if err := s.db.Create(value).Error; err != nil {
		s.t.Fatalf("seed %T: %v", value, err)
	}
}

func (s *Seeder) Building(name string, readingWindowEndDay int) *buildingdomain.Building {
	s.t.Helper()
	building := &buildingdomain.Building{
		ID:                  s.node.Generate(),
		Name:                name,
		ReadingWindowEndDay: readingWindowEndDay,
		IsActive:            true,
		CreatedAt:           s.now,
		UpdatedAt:           s.now,
	}
	s.create(building)
	return building
}

func (s *Seeder) Apartment(buildingID snowflake.ID, code string, area string, occupants int) *buildingdomain.Apartment {
	s.t.Helper()
	apartment := &buildingdomain.Apartment{
		ID:            s.node.Generate(),
		BuildingID:    buildingID,
		Code:          code,
		Area:          decimal.RequireFromString(area),
		OccupantCount: occupants,
		Status:        buildingdomain.ApartmentStatusActive,
		CreatedAt:     s.now,
		UpdatedAt:     s.now,
	}
	s.create(apartment)
	return apartment
}

func (s *Seeder) Resident(apartmentID snowflake.ID, name, email string) *buildingdomain.Resident {
	s.t.Helper()
	resident := &buildingdomain.Resident{
		ID:          s.node.Generate(),
		ApartmentID: apartmentID,
		Name:        name,
		Email:       email,
		Active:      true,
		CreatedAt:   s.now,
	}
	s.create(resident)
	return resident
}

func (s *Seeder) Item(apartmentID snowflake.ID, feeType string, quantity int64) *buildingdomain.ApartmentItem {
	s.t.Helper()
	item := &buildingdomain.ApartmentItem{
		ID:          s.node.Generate(),
		ApartmentID: apartmentID,
		FeeType:     feeType,
		Quantity:    quantity,
		CreatedAt:   s.now,
	}
	s.create(item)
	return item
}

func (s *Seeder) Meter(apartmentID snowflake.ID, meterType string) *meterdomain.Meter {
	s.t.Helper()
	meter := &meterdomain.Meter{
		ID:          s.node.Generate(),
		ApartmentID: apartmentID,
		Type:        meterType,
		Serial:      fmt.Sprintf("%s-%d", meterType, seq.Add(1)),
		Active:      true,
		CreatedAt:   s.now,
		UpdatedAt:   s.now,
	}
	s.create(meter)
	return meter
}

func (s *Seeder) Tariff(buildingID snowflake.ID, feeType, method, unitPrice string) *tariffdomain.PriceQuotation {
	s.t.Helper()
	quotation := &tariffdomain.PriceQuotation{
		ID:                s.node.Generate(),
		BuildingID:        buildingID,
		FeeType:           feeType,
		CalculationMethod: method,
		UnitPrice:         decimal.RequireFromString(unitPrice),
		IsActive:          true,
		CreatedAt:         s.now,
		UpdatedAt:         s.now,
	}
	s.create(quotation)
	return quotation
}
