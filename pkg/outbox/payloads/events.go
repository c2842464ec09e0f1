package payloads

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderStatusChangedEvent is emitted whenever a persisted order changes status.
type OrderStatusChangedEvent struct {
	OrderID   uuid.UUID         `json:"orderId"`
	Ref       string            `json:"ref"`
	NewStatus enums.OrderStatus `json:"newStatus"`
	OldStatus enums.OrderStatus `json:"oldStatus,omitempty"`
	Total     string            `json:"total"`
	Email     string            `json:"email,omitempty"`
}
