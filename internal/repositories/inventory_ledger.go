package repositories

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrInsufficientStock means the product exists but cannot cover the
	// requested quantity. Retrying will not help within the same instant.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrVersionConflict means a concurrent reservation moved the version
	// between the caller's read and the conditional write. The caller
	// should re-read and re-attempt; it is not a permanent failure.
	ErrVersionConflict = errors.New("inventory version conflict")

	// ErrProductNotFound is shared by the ledger and the product repository.
	ErrProductNotFound = errors.New("product not found")
)

// InventoryLedger is the only path allowed to mutate Product.Inventory and
// Product.Version. Reserve uses the version counter as an optimistic lock so
// no row lock is held across the payment round-trip; Release is the
// compensation applied when a reservation is undone (cancellation, payment
// failure, stale-order sweep).
//
// WithTx binds the ledger to a transaction so reservations commit or roll
// back together with the order that caused them.
type InventoryLedger interface {
	WithTx(tx *gorm.DB) InventoryLedger
	Reserve(productID string, quantity, expectedVersion int) error
	Release(productID string, quantity int) error
}
