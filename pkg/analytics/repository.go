package analytics

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&eventModel{})
}

func (r *Repository) Insert(ctx context.Context, event *eventModel) error {
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *Repository) CleanupExpired(ctx context.Context, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-ttl)
	return r.db.WithContext(ctx).Where("received_at < ?", cutoff).Delete(&eventModel{}).Error
}
