package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	buildingdomain "github.com/smallbiznis/estatebill/internal/building/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() buildingdomain.Repository {
	return &repo{}
}

func (r *repo) FindBuilding(ctx context.Context, db *gorm.DB, id snowflake.ID) (*buildingdomain.Building, error) {
	var building buildingdomain.Building
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, reading_window_end_day, is_active, created_at, updated_at
		 FROM buildings WHERE id = ?`,
		id,
	).Scan(&building).Error
	if err != nil {
		return nil, err
	}
	if building.ID == 0 {
		return nil, nil
	}
	return &building, nil
}

func (r *repo) FindApartment(ctx context.Context, db *gorm.DB, id snowflake.ID) (*buildingdomain.Apartment, error) {
	var apartment buildingdomain.Apartment
	err := db.WithContext(ctx).Raw(
		`SELECT id, building_id, code, area, occupant_count, status, created_at, updated_at
		 FROM apartments WHERE id = ?`,
		id,
	).Scan(&apartment).Error
	if err != nil {
		return nil, err
	}
	if apartment.ID == 0 {
		return nil, nil
	}
	return &apartment, nil
}

func (r *repo) ListActiveBuildings(ctx context.Context, db *gorm.DB) ([]buildingdomain.Building, error) {
	var buildings []buildingdomain.Building
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, reading_window_end_day, is_active, created_at, updated_at
		 FROM buildings WHERE is_active = ? ORDER BY id ASC`,
		true,
	).Scan(&buildings).Error
	if err != nil {
		return nil, err
	}
	return buildings, nil
}

func (r *repo) ListActiveApartments(ctx context.Context, db *gorm.DB, buildingID snowflake.ID) ([]buildingdomain.Apartment, error) {
	var apartments []buildingdomain.Apartment
	err := db.WithContext(ctx).Raw(
		`SELECT id, building_id, code, area, occupant_count, status, created_at, updated_at
		 FROM apartments WHERE building_id = ? AND status <> ? ORDER BY id ASC`,
		buildingID,
		buildingdomain.ApartmentStatusInactive,
	).Scan(&apartments).Error
	if err != nil {
		return nil, err
	}
	return apartments, nil
}

func (r *repo) ListActiveResidents(ctx context.Context, db *gorm.DB, apartmentIDs []snowflake.ID) ([]buildingdomain.Resident, error) {
	if len(apartmentIDs) == 0 {
		return nil, nil
	}
	var residents []buildingdomain.Resident
	err := db.WithContext(ctx).Raw(
		`SELECT id, apartment_id, name, email, active, created_at
		 FROM residents WHERE apartment_id IN ? AND active = ? ORDER BY apartment_id ASC, id ASC`,
		apartmentIDs,
		true,
	).Scan(&residents).Error
	if err != nil {
		return nil, err
	}
	return residents, nil
}

func (r *repo) ItemCounts(ctx context.Context, db *gorm.DB, apartmentID snowflake.ID) (map[string]int64, error) {
	var rows []struct {
		FeeType  string
		Quantity int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT fee_type, quantity FROM apartment_items WHERE apartment_id = ?`,
		apartmentID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.FeeType] += row.Quantity
	}
	return counts, nil
}
