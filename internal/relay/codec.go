package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// Message is what goes on the wire for one outbox row.
type Message struct {
	Topic      string
	EventID    string
	Data       []byte
	Attributes map[string]string
}

type route struct {
	aggregate enums.OutboxAggregateType
	topic     string
	check     func(json.RawMessage) error
}

// Codec turns stored outbox rows into broker messages. Rows it cannot
// encode fail permanently.
type Codec struct {
	routes map[enums.OutboxEventType]route
}

func NewCodec(cfg config.PubSubConfig) (*Codec, error) {
	if cfg.OrderEventsTopic == "" {
		return nil, fmt.Errorf("order events topic is required")
	}
	return &Codec{routes: map[enums.OutboxEventType]route{
		enums.EventOrderStatusChanged: {
			aggregate: enums.AggregateOrder,
			topic:     cfg.OrderEventsTopic,
			check:     checkStatusChanged,
		},
	}}, nil
}

// Topics lists every topic the codec routes to, sorted.
func (c *Codec) Topics() []string {
	set := map[string]struct{}{}
	for _, r := range c.routes {
		set[r.topic] = struct{}{}
	}
	topics := make([]string, 0, len(set))
	for t := range set {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

func (c *Codec) Encode(row models.OutboxEvent) (Message, error) {
	r, ok := c.routes[row.EventType]
	if !ok {
		return Message{}, Permanent(fmt.Errorf("no route for event type %s", row.EventType))
	}
	if r.aggregate != row.AggregateType {
		return Message{}, Permanent(fmt.Errorf("event %s belongs to %s, row says %s", row.EventType, r.aggregate, row.AggregateType))
	}
	if row.AggregateID == uuid.Nil {
		return Message{}, Permanent(fmt.Errorf("row %s has no aggregate id", row.ID))
	}

	var env outbox.Envelope
	if err := json.Unmarshal(row.Payload, &env); err != nil {
		return Message{}, Permanent(fmt.Errorf("decode envelope: %w", err))
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Message{}, Permanent(fmt.Errorf("envelope of %s carries no data", row.EventType))
	}
	if err := r.check(data); err != nil {
		return Message{}, Permanent(fmt.Errorf("%s payload: %w", row.EventType, err))
	}

	return Message{
		Topic:   r.topic,
		EventID: env.EventID,
		Data:    row.Payload,
		Attributes: map[string]string{
			"event_id":       env.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"occurred_at":    env.OccurredAt.UTC().Format(time.RFC3339Nano),
		},
	}, nil
}

func checkStatusChanged(raw json.RawMessage) error {
	var evt payloads.OrderStatusChangedEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return err
	}
	if evt.Ref == "" {
		return fmt.Errorf("missing order ref")
	}
	if !evt.NewStatus.IsValid() {
		return fmt.Errorf("unknown status %q", evt.NewStatus)
	}
	return nil
}
