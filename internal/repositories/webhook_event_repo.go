package repositories

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"lapak/internal/models"
)

// ErrDuplicateEvent means this gateway event was already applied. Callers
// acknowledge without reapplying.
var ErrDuplicateEvent = errors.New("webhook event already processed")

// WebhookEventRepository records which gateway events have been applied.
// Record must run inside the same transaction as the status change it
// guards, so the event is marked processed atomically with its effect.
type WebhookEventRepository interface {
	WithTx(tx *gorm.DB) WebhookEventRepository
	Record(event *models.WebhookEvent) error
}

// GORMWebhookEventRepository is a GORM implementation of WebhookEventRepository.
type GORMWebhookEventRepository struct {
	db *gorm.DB
}

// NewGORMWebhookEventRepository creates a new instance of GORMWebhookEventRepository.
func NewGORMWebhookEventRepository(db *gorm.DB) *GORMWebhookEventRepository {
	return &GORMWebhookEventRepository{
		db: db,
	}
}

// WithTx returns a repository bound to the given transaction.
func (r *GORMWebhookEventRepository) WithTx(tx *gorm.DB) WebhookEventRepository {
	return &GORMWebhookEventRepository{db: tx}
}

// Record inserts the idempotency row for a processed event. A second Record
// for the same event ID returns ErrDuplicateEvent; the primary key is the
// backstop if two deliveries race past the existence check.
func (r *GORMWebhookEventRepository) Record(event *models.WebhookEvent) error {
	var count int64
	if err := r.db.Model(&models.WebhookEvent{}).
		Where("event_id = ?", event.EventID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check webhook event %s: %w", event.EventID, err)
	}
	if count > 0 {
		return ErrDuplicateEvent
	}

	event.ProcessedAt = time.Now()
	if err := r.db.Create(event).Error; err != nil {
		return fmt.Errorf("failed to record webhook event %s: %w", event.EventID, err)
	}
	return nil
}
