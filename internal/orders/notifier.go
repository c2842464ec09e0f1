package orders

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/identity"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.Event) error
}

// OutboxNotifier turns status changes into order_status_changed outbox rows.
type OutboxNotifier struct {
	outbox outboxPublisher
}

func NewOutboxNotifier(publisher outboxPublisher) *OutboxNotifier {
	return &OutboxNotifier{outbox: publisher}
}

func (n *OutboxNotifier) StatusChanged(ctx context.Context, tx *gorm.DB, change StatusChange) error {
	order := change.Order
	event := outbox.Event{
		Type:        enums.EventOrderStatusChanged,
		Aggregate:   enums.AggregateOrder,
		AggregateID: order.ID,
		Actor:       actorFromContext(ctx),
		Data: payloads.OrderStatusChangedEvent{
			OrderID:   order.ID,
			Ref:       order.Ref,
			NewStatus: change.NewStatus,
			OldStatus: change.OldStatus,
			Total:     money.FormatPrice(order.Total),
			Email:     order.Email,
		},
	}
	return n.outbox.Emit(ctx, tx, event)
}

func actorFromContext(ctx context.Context) *outbox.Actor {
	id, ok := identity.FromContext(ctx)
	if !ok {
		return nil
	}
	return &outbox.Actor{UserID: id.UserID, SessionKey: id.SessionKey, Staff: id.Staff}
}
