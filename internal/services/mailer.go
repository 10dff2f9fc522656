package services

import (
	"encoding/json"
	"fmt"

	"lapak/internal/models"
	"lapak/pkg/rabbitmq"
)

// QueueMailer hands confirmation mail to the external relay by publishing
// jobs onto the mail queue. Delivery is the relay's problem; the order flow
// only fires and forgets.
type QueueMailer struct {
	publisher EventPublisher
}

// NewQueueMailer creates a new QueueMailer.
func NewQueueMailer(publisher EventPublisher) *QueueMailer {
	return &QueueMailer{publisher: publisher}
}

type mailJob struct {
	Template string `json:"template"`
	OrderID  string `json:"order_id"`
	UserID   string `json:"user_id"`
	Total    int64  `json:"total"`
	Currency string `json:"currency"`
}

// SendOrderConfirmation queues the order-confirmation mail job.
func (m *QueueMailer) SendOrderConfirmation(order *models.Order) error {
	if m.publisher == nil {
		return fmt.Errorf("mail publisher is not available")
	}
	body, err := json.Marshal(mailJob{
		Template: "order_confirmation",
		OrderID:  order.ID,
		UserID:   order.UserID,
		Total:    order.Total,
		Currency: order.Currency,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal mail job: %w", err)
	}
	return m.publisher.Publish(rabbitmq.MailQueue, body)
}
