package repositories

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"lapak/internal/models"
)

// AddressRepository is the shipping-address collaborator consumed by the
// order flow. BelongsTo is the only call the core needs.
type AddressRepository interface {
	Create(address *models.Address) error
	BelongsTo(addressID, userID string) (bool, error)
}

// GORMAddressRepository is a GORM implementation of AddressRepository.
type GORMAddressRepository struct {
	db *gorm.DB
}

// NewGORMAddressRepository creates a new instance of GORMAddressRepository.
func NewGORMAddressRepository(db *gorm.DB) *GORMAddressRepository {
	return &GORMAddressRepository{
		db: db,
	}
}

// Create stores a new address for a user.
func (r *GORMAddressRepository) Create(address *models.Address) error {
	if address.ID == "" {
		address.ID = uuid.New().String()
	}
	if err := r.db.Create(address).Error; err != nil {
		return fmt.Errorf("failed to create address: %w", err)
	}
	return nil
}

// BelongsTo reports whether the address exists and is owned by the user.
func (r *GORMAddressRepository) BelongsTo(addressID, userID string) (bool, error) {
	var count int64
	if err := r.db.Model(&models.Address{}).
		Where("id = ? AND user_id = ?", addressID, userID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check address %s ownership: %w", addressID, err)
	}
	return count > 0, nil
}
