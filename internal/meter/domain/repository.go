package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Meter, error)
	ListActiveByBuilding(ctx context.Context, db *gorm.DB, buildingID snowflake.ID) ([]Meter, error)
}
