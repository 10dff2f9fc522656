package repositories

import (
	"gorm.io/gorm"

	"lapak/internal/models"
)

// ProductRepository defines the interface for product data access. It is the
// catalog collaborator for the order flow: GetByID supplies the current
// price and the Purchasable flag.
//
// Update persists catalog fields only, never Inventory or Version. Those
// columns belong to the InventoryLedger.
type ProductRepository interface {
	WithTx(tx *gorm.DB) ProductRepository
	GetAll() ([]models.Product, error)
	GetByID(id string) (*models.Product, error)
	Create(product *models.Product) error
	Update(product *models.Product) error
	Delete(id string) error
}
