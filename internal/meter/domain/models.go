package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Meter is a physical meter installed in an apartment. Type doubles as the fee type
// of the consumption line it produces, e.g. "electricity" or "water".
type Meter struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	ApartmentID snowflake.ID `json:"apartment_id" gorm:"not null;index"`
	Type        string       `json:"type" gorm:"type:text;not null"`
	Serial      string       `json:"serial" gorm:"type:text"`
	Active      bool         `json:"active" gorm:"not null"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Meter) TableName() string { return "meters" }
