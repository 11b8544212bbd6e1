package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/schedadmin/schedadmin/internal/auth"
	"github.com/schedadmin/schedadmin/internal/models"
)

// LoadOrCreateSecret returns the persisted cookie secret, generating and
// storing one on first start
func LoadOrCreateSecret(db *gorm.DB) (string, error) {
	var settings models.Settings
	err := db.Transaction(func(tx *gorm.DB) error {
		err := tx.First(&settings).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		secret, err := auth.GenerateSecret()
		if err != nil {
			return err
		}
		settings = models.Settings{CookieSecret: secret}
		return tx.Create(&settings).Error
	})
	if err != nil {
		return "", fmt.Errorf("failed to load cookie secret: %w", err)
	}
	return settings.CookieSecret, nil
}
