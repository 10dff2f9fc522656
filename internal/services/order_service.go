package services

import (
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"lapak/internal/models"
	"lapak/internal/repositories"
	"lapak/pkg/rabbitmq"
)

// reserveAttempts bounds the optimistic-lock retry loop. A version conflict
// usually means another checkout touched the same product, not that stock
// is gone, so re-reading and re-attempting a few times is cheap; past that
// we report insufficient stock and let the buyer see fresh availability.
const reserveAttempts = 3

// OrderLine is one requested (product, quantity) pair from the client.
// Prices are never accepted from the client.
type OrderLine struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

// OrderService builds order aggregates and governs their lifecycle.
type OrderService struct {
	db        *gorm.DB
	orders    repositories.OrderRepository
	products  repositories.ProductRepository
	ledger    repositories.InventoryLedger
	addresses repositories.AddressRepository
	publisher EventPublisher
	mailer    Mailer
}

// NewOrderService creates a new OrderService.
func NewOrderService(
	db *gorm.DB,
	orders repositories.OrderRepository,
	products repositories.ProductRepository,
	ledger repositories.InventoryLedger,
	addresses repositories.AddressRepository,
	publisher EventPublisher,
	mailer Mailer,
) *OrderService {
	return &OrderService{
		db:        db,
		orders:    orders,
		products:  products,
		ledger:    ledger,
		addresses: addresses,
		publisher: publisher,
		mailer:    mailer,
	}
}

// CreateOrder validates the requested lines, reserves inventory and persists
// the order with snapshot prices, all inside one transaction, so either
// every line is reserved and the order exists, or nothing changed.
//
// The payment gateway is deliberately not called here: intent creation is a
// slow external round-trip and must never hold the inventory transaction
// open.
func (s *OrderService) CreateOrder(userID string, lines []OrderLine, addressID string) (*models.Order, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user", ErrValidation)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: order has no lines", ErrValidation)
	}
	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity for product %s must be at least 1", ErrValidation, line.ProductID)
		}
	}

	owned, err := s.addresses.BelongsTo(addressID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check address ownership: %w", err)
	}
	if !owned {
		return nil, fmt.Errorf("%w: address %s does not belong to user", ErrValidation, addressID)
	}

	order := &models.Order{
		ID:        uuid.New().String(),
		UserID:    userID,
		AddressID: addressID,
		Currency:  DefaultCurrency,
		Status:    models.StatusPending,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		txProducts := s.products.WithTx(tx)

		var total int64
		for _, line := range lines {
			price, err := s.reserveLine(tx, txProducts, line)
			if err != nil {
				return err
			}
			order.Items = append(order.Items, models.OrderItem{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Price:     price,
			})
			total += price * int64(line.Quantity)
		}
		order.Total = total

		return s.orders.WithTx(tx).Create(order)
	})
	if err != nil {
		return nil, err
	}

	publishOrderEvent(s.publisher, rabbitmq.OrderEventsQueue, "order.created", order)
	if s.mailer != nil {
		if err := s.mailer.SendOrderConfirmation(order); err != nil {
			log.Printf("Warning: failed to send confirmation for order %s: %v", order.ID, err)
		}
	}

	return order, nil
}

// reserveLine snapshots the current price and reserves stock for one line,
// retrying on version conflicts. Re-reading inside the transaction sees
// newly committed versions under read-committed isolation, which is what
// makes the retry useful.
func (s *OrderService) reserveLine(tx *gorm.DB, txProducts repositories.ProductRepository, line OrderLine) (int64, error) {
	txLedger := s.ledger.WithTx(tx)

	for attempt := 1; ; attempt++ {
		product, err := txProducts.GetByID(line.ProductID)
		if err != nil {
			if errors.Is(err, repositories.ErrProductNotFound) {
				return 0, fmt.Errorf("%w: unknown product %s", ErrValidation, line.ProductID)
			}
			return 0, err
		}
		if !product.Purchasable {
			return 0, fmt.Errorf("%w: product %s is not purchasable", ErrValidation, line.ProductID)
		}

		err = txLedger.Reserve(line.ProductID, line.Quantity, product.Version)
		if err == nil {
			return product.Price, nil
		}
		if errors.Is(err, repositories.ErrVersionConflict) && attempt < reserveAttempts {
			continue
		}
		if errors.Is(err, repositories.ErrVersionConflict) {
			// Contention persisted through every retry; to the buyer this
			// is indistinguishable from the stock being gone.
			return 0, repositories.ErrInsufficientStock
		}
		return 0, err
	}
}

// GetOrder returns an order if it belongs to the user.
func (s *OrderService) GetOrder(userID, orderID string) (*models.Order, error) {
	order, err := s.orders.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("%w: %s", repositories.ErrOrderNotFound, orderID)
	}
	return order, nil
}

// GetOrdersForUser returns the user's orders, newest first.
func (s *OrderService) GetOrdersForUser(userID string) ([]models.Order, error) {
	return s.orders.GetByUser(userID)
}

// CancelOrder cancels a buyer's own order before payment, releasing its
// reservations. Orders past PENDING are refused with ErrInvalidTransition
// (paid orders go through the refund path instead, which lives elsewhere).
func (s *OrderService) CancelOrder(userID, orderID string) (*models.Order, error) {
	var cancelled *models.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		order, err := s.orders.WithTx(tx).GetByID(orderID)
		if err != nil {
			return err
		}
		if order.UserID != userID {
			return fmt.Errorf("%w: %s", repositories.ErrOrderNotFound, orderID)
		}
		if order.Status != models.StatusPending {
			return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, order.Status, models.StatusCancelled)
		}
		if err := cancelPendingOrder(tx, s.orders, s.ledger, order); err != nil {
			return err
		}
		cancelled = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	publishOrderEvent(s.publisher, rabbitmq.OrderEventsQueue, "order.cancelled", cancelled)
	return cancelled, nil
}

// AdvanceFulfillment applies a seller/fulfillment transition (SHIPPED,
// DELIVERED). Whether the actor may do so is decided upstream; only the
// legality of the transition is enforced here.
func (s *OrderService) AdvanceFulfillment(orderID string, next models.OrderStatus) (*models.Order, error) {
	if next != models.StatusShipped && next != models.StatusDelivered {
		return nil, fmt.Errorf("%w: %s is not a fulfillment status", ErrValidation, next)
	}

	var updated *models.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		txOrders := s.orders.WithTx(tx)
		order, err := txOrders.GetByID(orderID)
		if err != nil {
			return err
		}
		if err := order.TransitionTo(next); err != nil {
			return err
		}
		if err := txOrders.Update(order); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
