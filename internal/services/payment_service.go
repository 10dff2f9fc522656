package services

import (
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"lapak/internal/models"
	"lapak/internal/repositories"
	"lapak/pkg/gateway"
	"lapak/pkg/rabbitmq"
)

// PaymentService owns the payment half of the order lifecycle: creating
// gateway intents after checkout and reconciling the gateway's asynchronous
// callbacks with order status.
type PaymentService struct {
	db        *gorm.DB
	orders    repositories.OrderRepository
	ledger    repositories.InventoryLedger
	events    repositories.WebhookEventRepository
	gw        gateway.PaymentGateway
	publisher EventPublisher
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	db *gorm.DB,
	orders repositories.OrderRepository,
	ledger repositories.InventoryLedger,
	events repositories.WebhookEventRepository,
	gw gateway.PaymentGateway,
	publisher EventPublisher,
) *PaymentService {
	return &PaymentService{
		db:        db,
		orders:    orders,
		ledger:    ledger,
		events:    events,
		gw:        gw,
		publisher: publisher,
	}
}

// CreateIntent registers a payment intent for a PENDING order and stores the
// gateway's reference on it. Calling it again for the same order returns the
// stored intent instead of charging twice.
//
// If the gateway cannot produce an intent the customer has no way to pay, so
// the order is compensated on the spot: inventory released, status CANCELLED.
func (s *PaymentService) CreateIntent(userID, orderID string) (*gateway.Intent, error) {
	order, err := s.orders.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("%w: %s", repositories.ErrOrderNotFound, orderID)
	}
	if order.PaymentIntentID != "" && order.Status == models.StatusPending {
		return &gateway.Intent{ID: order.PaymentIntentID, ClientSecret: order.ClientSecret}, nil
	}
	if order.Status != models.StatusPending {
		return nil, fmt.Errorf("%w: order %s is %s", ErrNotPayable, orderID, order.Status)
	}

	intent, err := s.gw.CreateIntent(order.ID, order.Total, order.Currency)
	if err != nil {
		if compErr := s.compensate(order.ID); compErr != nil {
			log.Printf("Failed to compensate order %s after gateway error: %v", order.ID, compErr)
		}
		return nil, fmt.Errorf("payment could not be initiated for order %s: %w", order.ID, err)
	}

	order.PaymentIntentID = intent.ID
	order.ClientSecret = intent.ClientSecret
	order.PaymentStatus = "created"
	if err := s.orders.Update(order); err != nil {
		return nil, err
	}
	return intent, nil
}

// compensate releases a pending order's reservations and cancels it after a
// gateway failure, in its own transaction.
func (s *PaymentService) compensate(orderID string) error {
	var cancelled *models.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		order, err := s.orders.WithTx(tx).GetByID(orderID)
		if err != nil {
			return err
		}
		if order.Status != models.StatusPending {
			return nil // someone else already resolved it
		}
		if err := cancelPendingOrder(tx, s.orders, s.ledger, order); err != nil {
			return err
		}
		cancelled = order
		return nil
	})
	if err != nil {
		return err
	}
	if cancelled != nil {
		publishOrderEvent(s.publisher, rabbitmq.OrderEventsQueue, "order.cancelled", cancelled)
	}
	return nil
}

// HandleWebhook consumes one raw gateway callback. A nil return means the
// event was durably recorded (or safely ignorable) and the HTTP layer must
// ack with 200 so the gateway stops retrying; only a signature failure or a
// transient storage error propagates.
//
// The gateway delivers at-least-once and out of order. Deduplication is by
// event ID, recorded in the same transaction as the status change;
// out-of-order outcomes that would regress a settled order are ignored.
func (s *PaymentService) HandleWebhook(payload []byte, signatureHeader string) error {
	event, err := s.gw.VerifyCallback(payload, signatureHeader)
	if err != nil {
		// Correlation data only; the raw payload stays out of the logs.
		log.Printf("Rejected webhook: %v", err)
		return err
	}

	order, err := s.orders.GetByIntentID(event.IntentID)
	if err != nil {
		if errors.Is(err, repositories.ErrOrderNotFound) {
			// Ack so the gateway does not retry forever; an intent we never
			// issued is an anomaly worth a trace, not a 4xx.
			log.Printf("Anomaly: webhook event %s references unknown intent %s", event.EventID, event.IntentID)
			return nil
		}
		return err
	}

	var applied *models.Order
	err = s.db.Transaction(func(tx *gorm.DB) error {
		recordErr := s.events.WithTx(tx).Record(&models.WebhookEvent{
			EventID:     event.EventID,
			OrderID:     order.ID,
			Outcome:     string(event.Outcome),
			GatewayTime: event.OccurredAt,
		})
		if errors.Is(recordErr, repositories.ErrDuplicateEvent) {
			return nil // already applied once; ack without reapplying
		}
		if recordErr != nil {
			return recordErr
		}

		// Re-read inside the transaction so the status check and the
		// transition see the same row.
		txOrders := s.orders.WithTx(tx)
		current, err := txOrders.GetByID(order.ID)
		if err != nil {
			return err
		}

		if current.Status != models.StatusPending {
			// Out-of-order or late delivery for an order that already
			// settled. Keep the event recorded, change nothing.
			log.Printf("Ignoring stale webhook event %s (%s) for order %s in status %s",
				event.EventID, event.Outcome, current.ID, current.Status)
			return nil
		}

		switch event.Outcome {
		case gateway.OutcomeSucceeded:
			if err := current.TransitionTo(models.StatusProcessing); err != nil {
				return err
			}
			current.PaymentStatus = string(gateway.OutcomeSucceeded)
			if err := txOrders.Update(current); err != nil {
				return err
			}
		case gateway.OutcomeFailed:
			current.PaymentStatus = string(gateway.OutcomeFailed)
			if err := cancelPendingOrder(tx, s.orders, s.ledger, current); err != nil {
				return err
			}
		default:
			log.Printf("Ignoring webhook event %s with unknown outcome %q", event.EventID, event.Outcome)
			return nil
		}

		applied = current
		return nil
	})
	if err != nil {
		return err
	}

	if applied != nil {
		switch applied.Status {
		case models.StatusProcessing:
			publishOrderEvent(s.publisher, rabbitmq.OrderEventsQueue, "order.paid", applied)
		case models.StatusCancelled:
			publishOrderEvent(s.publisher, rabbitmq.OrderEventsQueue, "order.cancelled", applied)
		}
	}
	return nil
}
