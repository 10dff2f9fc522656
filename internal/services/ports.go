package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"lapak/internal/models"
	"lapak/internal/repositories"
)

// DefaultCurrency is applied to all orders until multi-currency pricing
// lands in the catalog.
const DefaultCurrency = "USD"

var (
	// ErrValidation covers bad input: empty carts, non-positive quantities,
	// unknown products, addresses the buyer does not own. No side effects.
	ErrValidation = errors.New("validation failed")

	// ErrNotPayable means the order is not in a state that accepts a
	// payment intent (already paid, cancelled, or fulfilled).
	ErrNotPayable = errors.New("order is not awaiting payment")
)

// EventPublisher is the outbound message-bus port. The RabbitMQ client
// satisfies it; tests pass a mock or nil. Publishing is always
// fire-and-forget from the caller's point of view: a broker hiccup must
// never roll back an order.
type EventPublisher interface {
	Publish(queue string, body []byte) error
}

// Mailer sends customer notifications. Failures are logged, never
// propagated: mail must not undo a committed order.
type Mailer interface {
	SendOrderConfirmation(order *models.Order) error
}

// OrderEvent is the lifecycle message published to the order events queue.
type OrderEvent struct {
	Event   string `json:"event"` // order.created | order.paid | order.cancelled
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
	Total   int64  `json:"total"`
	Status  string `json:"status"`
}

// cancelPendingOrder transitions a PENDING order to CANCELLED and releases
// every reserved line, inside the caller's transaction. Shared by explicit
// cancellation, payment-failure reconciliation, gateway-error compensation
// and the stale-reservation sweep.
func cancelPendingOrder(tx *gorm.DB, orders repositories.OrderRepository, ledger repositories.InventoryLedger, order *models.Order) error {
	if err := order.TransitionTo(models.StatusCancelled); err != nil {
		return err
	}

	txLedger := ledger.WithTx(tx)
	for _, item := range order.Items {
		if err := txLedger.Release(item.ProductID, item.Quantity); err != nil {
			return fmt.Errorf("failed to release reservation for order %s: %w", order.ID, err)
		}
	}

	if err := orders.WithTx(tx).Update(order); err != nil {
		return err
	}
	return nil
}

// publishOrderEvent marshals and publishes a lifecycle event, logging and
// swallowing any failure.
func publishOrderEvent(pub EventPublisher, queue, event string, order *models.Order) {
	if pub == nil {
		return
	}
	body, err := json.Marshal(OrderEvent{
		Event:   event,
		OrderID: order.ID,
		UserID:  order.UserID,
		Total:   order.Total,
		Status:  string(order.Status),
	})
	if err != nil {
		log.Printf("Failed to marshal %s event for order %s: %v", event, order.ID, err)
		return
	}
	if err := pub.Publish(queue, body); err != nil {
		log.Printf("Warning: failed to publish %s event for order %s: %v", event, order.ID, err)
	}
}
