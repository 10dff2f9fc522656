package repositories

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"lapak/internal/models"
)

// GORMInventoryLedger is a GORM implementation of InventoryLedger.
type GORMInventoryLedger struct {
	db *gorm.DB
}

// NewGORMInventoryLedger creates a new instance of GORMInventoryLedger.
func NewGORMInventoryLedger(db *gorm.DB) *GORMInventoryLedger {
	return &GORMInventoryLedger{
		db: db,
	}
}

// WithTx returns a ledger bound to the given transaction.
func (l *GORMInventoryLedger) WithTx(tx *gorm.DB) InventoryLedger {
	return &GORMInventoryLedger{db: tx}
}

// Reserve decrements stock by quantity and bumps the version, conditioned on
// the stored version still equaling expectedVersion. A zero-row update means
// another reservation won the race and the caller gets ErrVersionConflict.
// Products with nil inventory are unlimited and succeed without mutation.
func (l *GORMInventoryLedger) Reserve(productID string, quantity, expectedVersion int) error {
	var product models.Product
	if err := l.db.Select("id", "inventory", "version").First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
		}
		return fmt.Errorf("failed to read inventory for product %s: %w", productID, err)
	}

	if product.Unlimited() {
		return nil
	}
	if product.Version != expectedVersion {
		return ErrVersionConflict
	}
	if *product.Inventory < quantity {
		return ErrInsufficientStock
	}

	res := l.db.Model(&models.Product{}).
		Where("id = ? AND version = ? AND inventory >= ?", productID, expectedVersion, quantity).
		Updates(map[string]interface{}{
			"inventory": gorm.Expr("inventory - ?", quantity),
			"version":   gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to reserve %d of product %s: %w", quantity, productID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

// Release adds quantity back to stock and bumps the version. Unlimited
// products are a no-op. Release is unconditional on version: compensation
// must not fail just because a concurrent reservation happened in between.
func (l *GORMInventoryLedger) Release(productID string, quantity int) error {
	res := l.db.Model(&models.Product{}).
		Where("id = ? AND inventory IS NOT NULL", productID).
		Updates(map[string]interface{}{
			"inventory": gorm.Expr("inventory + ?", quantity),
			"version":   gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to release %d of product %s: %w", quantity, productID, res.Error)
	}
	return nil
}
