package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const envelopeVersion = 1

// Actor is whoever caused the event.
type Actor struct {
	UserID     *uuid.UUID `json:"userId,omitempty"`
	SessionKey string     `json:"sessionKey,omitempty"`
	Staff      bool       `json:"staff,omitempty"`
}

// Envelope is the JSON stored in outbox_events.payload and published as is.
// EventID equals the row id.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *Actor          `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

type Event struct {
	Type        enums.OutboxEventType
	Aggregate   enums.OutboxAggregateType
	AggregateID uuid.UUID
	Actor       *Actor
	Data        any
	OccurredAt  time.Time
}

type inserter interface {
	Insert(tx *gorm.DB, row models.OutboxEvent) error
}

// Writer appends events to the outbox inside the caller's transaction.
type Writer struct {
	rows inserter
	logg *logger.Logger
	now  func() time.Time
}

func NewWriter(rows *Repository, logg *logger.Logger) *Writer {
	return &Writer{rows: rows, logg: logg, now: time.Now}
}

// Emit stores event on tx so it commits or rolls back with the change that
// caused it.
func (w *Writer) Emit(ctx context.Context, tx *gorm.DB, event Event) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	if !event.Type.IsValid() {
		return fmt.Errorf("unknown outbox event type %q", event.Type)
	}
	if !event.Aggregate.IsValid() {
		return fmt.Errorf("unknown outbox aggregate %q", event.Aggregate)
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("encode %s data: %w", event.Type, err)
	}
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = w.now()
	}
	id := uuid.New()
	payload, err := json.Marshal(Envelope{
		Version:    envelopeVersion,
		EventID:    id.String(),
		OccurredAt: occurred.UTC(),
		Actor:      event.Actor,
		Data:       data,
	})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	err = w.rows.Insert(tx, models.OutboxEvent{
		ID:            id,
		EventType:     event.Type,
		AggregateType: event.Aggregate,
		AggregateID:   event.AggregateID,
		Payload:       payload,
	})
	if err != nil {
		return fmt.Errorf("insert outbox row: %w", err)
	}

	if w.logg != nil {
		w.logg.Debug(w.logg.WithFields(ctx, map[string]any{
			"event_id":     id.String(),
			"event_type":   event.Type,
			"aggregate_id": event.AggregateID.String(),
		}), "outbox event queued")
	}
	return nil
}
