package models

import (
	"time"
)

// User represents one account. IDs are strings on purpose: a row created by a
// provider sign-in uses the provider subject id, while rows inherited from the
// password era carry whatever id they were created with.
//
// Email is indexed but deliberately not unique. Duplicate accounts for the
// same email are a known transient state that the duplicate merger cleans up;
// a unique index would make the merger impossible to run against legacy data.
type User struct {
	ID          string     `gorm:"primaryKey" json:"id"`
	Email       string     `gorm:"index" json:"email"`
	Name        string     `json:"name"`
	Phone       string     `json:"phone"`
	PhotoURL    string     `gorm:"column:photo_url" json:"photo_url"`
	AvatarS3Key string     `gorm:"column:avatar_s3_key" json:"-"`
	AuthID      *string    `gorm:"column:auth_id;index" json:"auth_id"`
	IsPro       bool       `gorm:"column:is_pro" json:"is_pro"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// NormalizedUser is the wire shape returned after a verify+upsert. It exposes
// both the canonical field names and the legacy Portuguese aliases so older
// frontend builds keep working.
type NormalizedUser struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	Name        string  `json:"name"`
	Nome        string  `json:"nome"`
	Phone       string  `json:"phone"`
	Celular     string  `json:"celular"`
	PhotoURL    string  `json:"photoURL"`
	AvatarS3Key string  `json:"-"`
	AuthID      *string `json:"auth_id,omitempty"`
	IsPro       bool    `json:"is_pro"`
	CreatedAt   *string `json:"created_at"`
}
