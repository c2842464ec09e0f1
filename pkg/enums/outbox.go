package enums

import "slices"

// OutboxAggregateType is the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateOrder  OutboxAggregateType = "order"
	AggregateBasket OutboxAggregateType = "basket"
)

func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains([]OutboxAggregateType{AggregateOrder, AggregateBasket}, a)
}

// OutboxEventType is the event_type column of outbox_events.
type OutboxEventType string

const EventOrderStatusChanged OutboxEventType = "order_status_changed"

func (e OutboxEventType) IsValid() bool {
	return e == EventOrderStatusChanged
}

// DeadLetterReason records why the relay parked an event in outbox_dlq.
type DeadLetterReason string

const (
	DeadLetterMaxAttempts  DeadLetterReason = "max_attempts"
	DeadLetterNonRetryable DeadLetterReason = "non_retryable"
)

func (r DeadLetterReason) IsValid() bool {
	return r == DeadLetterMaxAttempts || r == DeadLetterNonRetryable
}
