package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/schedadmin/schedadmin/internal/models"
)

// Revocations is the list of session cookies invalidated before expiry
type Revocations struct {
	db *gorm.DB
}

// NewRevocations creates the revocation list
func NewRevocations(db *gorm.DB) *Revocations {
	return &Revocations{db: db}
}

// Revoke marks the credential identified by jti as invalid until expiresAt
func (r *Revocations) Revoke(ctx context.Context, jti, userID string, expiresAt time.Time) error {
	if jti == "" {
		return errors.New("credential has no id")
	}
	row := models.RevokedCredential{ID: jti, UserID: userID, ExpiresAt: expiresAt.UTC()}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to revoke credential: %w", err)
	}
	return nil
}

// IsRevoked reports whether jti has been revoked
func (r *Revocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RevokedCredential{}).
		Where("id = ?", jti).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return count > 0, nil
}

// PurgeExpired deletes revocations whose credential has expired anyway
func (r *Revocations) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ?", now.UTC()).
		Delete(&models.RevokedCredential{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge revocations: %w", res.Error)
	}
	return res.RowsAffected, nil
}
