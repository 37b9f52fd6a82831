package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	meterdomain "github.com/smallbiznis/estatebill/internal/meter/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() meterdomain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*meterdomain.Meter, error) {
	var meter meterdomain.Meter
	err := db.WithContext(ctx).Raw(
		`SELECT id, apartment_id, type, serial, active, created_at, updated_at
		 FROM meters WHERE id = ?`,
		id,
	).Scan(&meter).Error
	if err != nil {
		return nil, err
	}
	if meter.ID == 0 {
		return nil, nil
	}
	return &meter, nil
}

// ListActiveByBuilding returns active meters installed in the building's active apartments.
func (r *repo) ListActiveByBuilding(ctx context.Context, db *gorm.DB, buildingID snowflake.ID) ([]meterdomain.Meter, error) {
	var meters []meterdomain.Meter
	err := db.WithContext(ctx).Raw(
		`SELECT m.id, m.apartment_id, m.type, m.serial, m.active, m.created_at, m.updated_at
		 FROM meters m
		 JOIN apartments a ON a.id = m.apartment_id
		 WHERE a.building_id = ? AND a.status <> 'INACTIVE' AND m.active = ?
		 ORDER BY m.id ASC`,
		buildingID,
		true,
	).Scan(&meters).Error
	if err != nil {
		return nil, err
	}
	return meters, nil
}
