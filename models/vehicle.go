package models

import (
	"time"

	"gorm.io/gorm"
)

// Vehicle represents a car registered in a user's garage
type Vehicle struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    string         `gorm:"not null;index" json:"user_id"` // foreign key to users table
	Plate     string         `json:"plate"`
	Brand     string         `gorm:"not null" json:"brand"`
	Model     string         `gorm:"not null" json:"model"`
	ModelYear int            `json:"model_year"`
	FipeCode  string         `gorm:"column:fipe_code" json:"fipe_code"` // FIPE table reference, filled by the frontend
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Vehicle model
func (Vehicle) TableName() string {
	return "vehicles"
}
