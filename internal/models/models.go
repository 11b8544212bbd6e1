package models

import (
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// BaseModel provides common fields and auto-generated ULID for all models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// Settings is a singleton row (only one should exist)
type Settings struct {
	BaseModel
	CookieSecret string    `json:"-" gorm:"type:varchar(64);not null"` // generated when none is configured (64 hex chars)
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// RevokedCredential marks a signed session cookie as no longer valid.
// ID is the credential's jti.
type RevokedCredential struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	UserID    string    `json:"user_id" gorm:"index"`
	ExpiresAt time.Time `json:"expires_at" gorm:"index;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// AccessEvent records a request the route guard did not authorize
type AccessEvent struct {
	BaseModel
	UserID  string `json:"user_id" gorm:"index"`
	Role    string `json:"role"`
	Path    string `json:"path" gorm:"not null"`
	Route   string `json:"route"`
	Outcome string `json:"outcome" gorm:"not null"` // unauthenticated, unverified, forbidden
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	models := []interface{}{
		&Settings{}, &RevokedCredential{}, &AccessEvent{},
	}

	return db.AutoMigrate(models...)
}

// FindByID safely finds a record by string ID
func FindByID[T any](db *gorm.DB, id string, model *T) error {
	return db.Where("id = ?", id).First(model).Error
}
