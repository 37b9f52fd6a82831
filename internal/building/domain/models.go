// Package domain holds the building roster: buildings, apartments, residents and
// the countable items billed per apartment.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Building is a managed building. ReadingWindowEndDay is the day of month on which the
// billing run for the previous month is due.
type Building struct {
	ID                  snowflake.ID `json:"id" gorm:"primaryKey"`
	Name                string       `json:"name" gorm:"type:text;not null"`
	ReadingWindowEndDay int          `json:"reading_window_end_day" gorm:"not null"`
	IsActive            bool         `json:"is_active" gorm:"not null"`
	CreatedAt           time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Building) TableName() string { return "buildings" }

type ApartmentStatus string

const (
	ApartmentStatusActive   ApartmentStatus = "ACTIVE"
	ApartmentStatusVacant   ApartmentStatus = "VACANT"
	ApartmentStatusInactive ApartmentStatus = "INACTIVE"
)

// Apartment is billable unless its status is INACTIVE.
type Apartment struct {
	ID            snowflake.ID    `json:"id" gorm:"primaryKey"`
	BuildingID    snowflake.ID    `json:"building_id" gorm:"not null;index"`
	Code          string          `json:"code" gorm:"type:text;not null"`
	Area          decimal.Decimal `json:"area" gorm:"type:numeric(12,2);not null;default:0"`
	OccupantCount int             `json:"occupant_count" gorm:"not null;default:0"`
	Status        ApartmentStatus `json:"status" gorm:"type:text;not null;default:'ACTIVE'"`
	CreatedAt     time.Time       `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Apartment) TableName() string { return "apartments" }

// Resident receives invoice emails for the apartment while active.
type Resident struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	ApartmentID snowflake.ID `json:"apartment_id" gorm:"not null;index"`
	Name        string       `json:"name" gorm:"type:text;not null"`
	Email       string       `json:"email" gorm:"type:text;not null"`
	Active      bool         `json:"active" gorm:"not null"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Resident) TableName() string { return "residents" }

// ApartmentItem counts things billed per item, e.g. parking slots under fee type "parking".
type ApartmentItem struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	ApartmentID snowflake.ID `json:"apartment_id" gorm:"not null;uniqueIndex:ux_apartment_items_fee,priority:1"`
	FeeType     string       `json:"fee_type" gorm:"type:varchar(64);not null;uniqueIndex:ux_apartment_items_fee,priority:2"`
	Quantity    int64        `json:"quantity" gorm:"not null;default:0"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ApartmentItem) TableName() string { return "apartment_items" }
