package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is read access to the roster. Find methods return nil, nil when nothing matches.
type Repository interface {
	FindBuilding(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Building, error)
	FindApartment(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Apartment, error)
	ListActiveBuildings(ctx context.Context, db *gorm.DB) ([]Building, error)
	ListActiveApartments(ctx context.Context, db *gorm.DB, buildingID snowflake.ID) ([]Apartment, error)
	ListActiveResidents(ctx context.Context, db *gorm.DB, apartmentIDs []snowflake.ID) ([]Resident, error)
	ItemCounts(ctx context.Context, db *gorm.DB, apartmentID snowflake.ID) (map[string]int64, error)
}
