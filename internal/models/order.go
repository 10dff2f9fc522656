package models

import (
	"errors"
	"fmt"
	"time"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending    OrderStatus = "PENDING"
	StatusProcessing OrderStatus = "PROCESSING"
	StatusShipped    OrderStatus = "SHIPPED"
	StatusDelivered  OrderStatus = "DELIVERED"
	StatusCancelled  OrderStatus = "CANCELLED"
)

// ErrInvalidTransition is returned when a status change is not in the
// transition table. The order is left unchanged.
var ErrInvalidTransition = errors.New("invalid order status transition")

// validNext is the full transition table. Cancellation is legal until
// fulfillment physically starts (SHIPPED); after that only the refund path,
// which lives outside this service, can touch the order.
var validNext = map[OrderStatus]map[OrderStatus]bool{
	StatusPending:    {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:    {StatusDelivered: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// CanTransition reports whether moving from s to next is legal.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	return validNext[s][next]
}

// Terminal reports whether no further transitions are possible.
func (s OrderStatus) Terminal() bool {
	return len(validNext[s]) == 0
}

// Order is a priced record of a purchase. Item prices and the total are
// snapshotted at creation time; later catalog price changes never alter an
// existing order.
type Order struct {
	ID        string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string      `json:"user_id" gorm:"index;type:varchar(36)"`
	AddressID string      `json:"address_id" gorm:"type:varchar(36)"`
	Items     []OrderItem `json:"items" gorm:"foreignKey:OrderID"`
	Total     int64       `json:"total"` // minor units, computed server-side
	Currency  string      `json:"currency" gorm:"size:8"`
	Status    OrderStatus `json:"status" gorm:"size:16;index"`

	// Payment intent reference: the gateway's opaque intent identifier and
	// the last gateway status we saw for it. The client secret is handed to
	// the buyer once via the intents endpoint, never in order payloads.
	PaymentIntentID string `json:"payment_intent_id,omitempty" gorm:"size:64;index"`
	PaymentStatus   string `json:"payment_status,omitempty" gorm:"size:32"`
	ClientSecret    string `json:"-" gorm:"size:128"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderItem is a single order line. Price is the unit price snapshot taken
// when the order was created; rows are immutable after that.
type OrderItem struct {
	ID        uint   `json:"-" gorm:"primaryKey"`
	OrderID   string `json:"-" gorm:"size:36;index;not null"`
	ProductID string `json:"product_id" gorm:"size:36;index;not null"`
	Quantity  int    `json:"quantity" gorm:"not null"`
	Price     int64  `json:"price" gorm:"not null"` // unit price, minor units
}

// TransitionTo moves the order to next if the transition table allows it.
// Illegal transitions return ErrInvalidTransition with both states attached
// for diagnosis and leave Status unchanged.
func (o *Order) TransitionTo(next OrderStatus) error {
	if !o.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, next)
	}
	o.Status = next
	return nil
}
