package repositories

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"lapak/internal/models"
)

// ErrOrderNotFound is returned when no order matches the lookup.
var ErrOrderNotFound = errors.New("order not found")

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	WithTx(tx *gorm.DB) OrderRepository
	Create(order *models.Order) error
	GetByID(id string) (*models.Order, error)
	GetByUser(userID string) ([]models.Order, error)
	GetByIntentID(intentID string) (*models.Order, error)
	// ListPendingBefore returns orders still PENDING whose creation time is
	// before cutoff. Used by the stale-reservation sweep.
	ListPendingBefore(cutoff time.Time) ([]models.Order, error)
	// Update persists the mutable order columns (status, payment reference).
	// Items are immutable and never rewritten.
	Update(order *models.Order) error
}
