package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/schedadmin/schedadmin/internal/guard"
	"github.com/schedadmin/schedadmin/internal/models"
)

// AccessLog stores the requests the route guard turned away
type AccessLog struct {
	db *gorm.DB
}

var _ guard.Recorder = (*AccessLog)(nil)

// NewAccessLog creates the access log
func NewAccessLog(db *gorm.DB) *AccessLog {
	return &AccessLog{db: db}
}

// Record implements guard.Recorder
func (l *AccessLog) Record(ctx context.Context, ev guard.Event) error {
	row := models.AccessEvent{
		UserID:  ev.UserID,
		Role:    string(ev.Role),
		Path:    ev.Path,
		Route:   ev.Route,
		Outcome: ev.State.String(),
	}
	if err := l.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to record access event: %w", err)
	}
	return nil
}

// Recent returns the newest events first
func (l *AccessLog) Recent(ctx context.Context, limit int) ([]models.AccessEvent, error) {
	var events []models.AccessEvent
	err := l.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list access events: %w", err)
	}
	return events, nil
}

// Prune deletes events recorded before cutoff
func (l *AccessLog) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res := l.db.WithContext(ctx).
		Where("created_at < ?", cutoff.UTC()).
		Delete(&models.AccessEvent{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune access events: %w", res.Error)
	}
	return res.RowsAffected, nil
}
