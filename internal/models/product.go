package models

import "gorm.io/gorm"

// Product represents a catalog entry referenced by orders.
//
// Price is stored in minor units (cents) so order totals never touch
// floating point. Inventory is nullable: nil means unlimited stock and
// reservations never mutate it. Version is the optimistic-lock counter for
// inventory; it starts at 1 and is bumped on every reserve/release. All
// stock mutations go through the inventory ledger; the product
// repository's Update leaves Inventory and Version untouched so admin
// edits cannot race a reservation.
type Product struct {
	ID          string `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name        string `json:"name" validate:"required,min=3,max=100"`
	Description string `json:"description" validate:"omitempty,max=500"`
	Price       int64  `json:"price" validate:"required,gt=0"` // minor units
	Inventory   *int   `json:"inventory" validate:"omitempty,gte=0"`
	Version     int    `json:"version" gorm:"not null;default:1"`
	Purchasable bool   `json:"purchasable" gorm:"not null;default:true"`
	gorm.Model         // Embed gorm.Model for CreatedAt, UpdatedAt, DeletedAt
}

// Unlimited reports whether the product is sold without stock tracking.
func (p *Product) Unlimited() bool {
	return p.Inventory == nil
}
