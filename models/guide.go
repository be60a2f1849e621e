package models

import (
	"time"

	"gorm.io/gorm"
)

// Guide represents a maintenance guide article written by a user.
//
// Guides reference their author by user id but are not re-parented by the
// duplicate merger; a duplicate account that still owns guides is retained
// and flagged for manual review instead of deleted.
type Guide struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	AuthorID  string         `gorm:"not null;index" json:"author_id"` // foreign key to users table
	Title     string         `gorm:"not null" json:"title"`
	Slug      string         `gorm:"uniqueIndex" json:"slug"`
	Body      string         `gorm:"type:text" json:"body"`
	Published bool           `gorm:"default:false" json:"published"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Guide model
func (Guide) TableName() string {
	return "guides"
}
