package models

import "time"

// WebhookEvent is the idempotency record for a processed gateway callback.
// The gateway may deliver the same event more than once and in any order;
// inserting this row in the same transaction as the status change makes
// "applied exactly once" hold even across crashed retries. Rows are kept
// indefinitely (the gateway's retention window is short by comparison).
type WebhookEvent struct {
	EventID     string    `json:"event_id" gorm:"primaryKey;size:128"`
	OrderID     string    `json:"order_id" gorm:"size:36;index"`
	Outcome     string    `json:"outcome" gorm:"size:16"`
	GatewayTime time.Time `json:"gateway_time"`
	ProcessedAt time.Time `json:"processed_at"`
}
