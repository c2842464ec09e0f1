package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// scriptedSink fails sends for aggregates listed in errs.
type scriptedSink struct {
	errs map[string]error
	sent []Message
}

func (s *scriptedSink) Send(_ context.Context, msg Message) error {
	if err := s.errs[msg.Attributes["aggregate_id"]]; err != nil {
		return err
	}
	s.sent = append(s.sent, msg)
	return nil
}

type fixture struct {
	conn  *gorm.DB
	relay *Relay
	sink  *scriptedSink
	reg   *prometheus.Registry
}

func newFixture(t *testing.T, maxAttempts int) *fixture {
	t.Helper()
	conn := dbtest.Open(t, &models.OutboxEvent{}, &models.OutboxDLQ{})
	codec, err := NewCodec(config.PubSubConfig{OrderEventsTopic: "order-events"})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	f := &fixture{conn: conn, sink: &scriptedSink{errs: map[string]error{}}, reg: reg}
	f.relay, err = New(Params{
		Logger:      logger.New(logger.Options{ServiceName: "relay-test", Output: io.Discard}),
		DB:          db.Wrap(conn),
		Store:       outbox.NewRepository(conn),
		DeadLetters: outbox.NewDLQRepository(conn),
		Codec:       codec,
		Sink:        f.sink,
		Metrics:     metrics.NewOutboxMetrics(reg),
		MaxAttempts: maxAttempts,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) emit(t *testing.T, data any) uuid.UUID {
	t.Helper()
	id := uuid.New()
	svc := outbox.NewWriter(outbox.NewRepository(f.conn), nil)
	require.NoError(t, f.conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, outbox.Event{
			Type:        enums.EventOrderStatusChanged,
			Aggregate:   enums.AggregateOrder,
			AggregateID: id,
			Data:        data,
		})
	}))
	return id
}

func (f *fixture) row(t *testing.T, aggregate uuid.UUID) models.OutboxEvent {
	t.Helper()
	var row models.OutboxEvent
	require.NoError(t, f.conn.Where("aggregate_id = ?", aggregate).Take(&row).Error)
	return row
}

func statusChanged(ref string) payloads.OrderStatusChangedEvent {
	return payloads.OrderStatusChangedEvent{OrderID: uuid.New(), Ref: ref, NewStatus: enums.OrderStatusProcessing, Total: "18.00"}
}

func TestDrainPublishesAndRetries(t *testing.T) {
	f := newFixture(t, 5)
	ok := f.emit(t, statusChanged("2026-00001"))
	flaky := f.emit(t, statusChanged("2026-00002"))
	f.sink.errs[flaky.String()] = errors.New("unavailable")

	n, err := f.relay.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, f.sink.sent, 1)
	msg := f.sink.sent[0]
	assert.Equal(t, "order-events", msg.Topic)
	assert.Equal(t, string(enums.EventOrderStatusChanged), msg.Attributes["event_type"])
	assert.NotEmpty(t, msg.EventID)
	assert.Equal(t, msg.EventID, msg.Attributes["event_id"])

	assert.NotNil(t, f.row(t, ok).PublishedAt)
	retried := f.row(t, flaky)
	assert.Nil(t, retried.PublishedAt)
	assert.Equal(t, 1, retried.AttemptCount)
	require.NotNil(t, retried.LastError)
	assert.Equal(t, "unavailable", *retried.LastError)

	delete(f.sink.errs, flaky.String())
	n, err = f.relay.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n, "published rows are not fetched again")
	assert.NotNil(t, f.row(t, flaky).PublishedAt)

	expected := `
# HELP outbox_published_total Outbox events published to the broker.
# TYPE outbox_published_total counter
outbox_published_total{event_type="order_status_changed"} 2
`
	require.NoError(t, testutil.GatherAndCompare(f.reg, strings.NewReader(expected), "outbox_published_total"))
}

func TestDrainDeadLettersBadPayloadImmediately(t *testing.T) {
	f := newFixture(t, 5)
	bad := f.emit(t, map[string]string{"ref": ""})

	_, err := f.relay.Drain(context.Background())
	require.NoError(t, err)
	assert.Empty(t, f.sink.sent)

	row := f.row(t, bad)
	assert.NotNil(t, row.TerminalAt)
	assert.Equal(t, 5, row.AttemptCount)

	parked, err := outbox.NewDLQRepository(f.conn).ForEvent(nil, row.ID)
	require.NoError(t, err)
	require.NotNil(t, parked)
	assert.Equal(t, enums.DeadLetterNonRetryable, parked.ErrorReason)
}

func TestDrainDeadLettersAfterMaxAttempts(t *testing.T) {
	f := newFixture(t, 2)
	id := f.emit(t, statusChanged("2026-00003"))
	f.sink.errs[id.String()] = errors.New("timeout")

	for i := 0; i < 2; i++ {
		_, err := f.relay.Drain(context.Background())
		require.NoError(t, err)
	}

	row := f.row(t, id)
	require.NotNil(t, row.TerminalAt)
	parked, err := outbox.NewDLQRepository(f.conn).ForEvent(nil, row.ID)
	require.NoError(t, err)
	require.NotNil(t, parked)
	assert.Equal(t, enums.DeadLetterMaxAttempts, parked.ErrorReason)
	require.NotNil(t, parked.ErrorMessage)
	assert.Contains(t, *parked.ErrorMessage, "timeout")

	n, err := f.relay.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDrainTreatsPermanentSinkErrorAsTerminal(t *testing.T) {
	f := newFixture(t, 5)
	id := f.emit(t, statusChanged("2026-00004"))
	f.sink.errs[id.String()] = Permanent(errors.New("topic deleted"))

	_, err := f.relay.Drain(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, f.row(t, id).TerminalAt)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, 5)
	f.emit(t, statusChanged("2026-00005"))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err := f.relay.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, f.sink.sent, 1)
}

func TestCodecRejectsMismatchedRows(t *testing.T) {
	codec, err := NewCodec(config.PubSubConfig{OrderEventsTopic: "order-events"})
	require.NoError(t, err)
	assert.Equal(t, []string{"order-events"}, codec.Topics())

	env, err := json.Marshal(outbox.Envelope{EventID: "e1", Data: json.RawMessage(`{"ref":"2026-00001","newStatus":"PROCESSING"}`)})
	require.NoError(t, err)

	cases := map[string]models.OutboxEvent{
		"unknown type":  {EventType: "order_teleported", AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: env},
		"wrong owner":   {EventType: enums.EventOrderStatusChanged, AggregateType: enums.AggregateBasket, AggregateID: uuid.New(), Payload: env},
		"no aggregate":  {EventType: enums.EventOrderStatusChanged, AggregateType: enums.AggregateOrder, Payload: env},
		"broken json":   {EventType: enums.EventOrderStatusChanged, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{`)},
		"null envelope": {EventType: enums.EventOrderStatusChanged, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{"data":null}`)},
	}
	for name, row := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Encode(row)
			require.Error(t, err)
			assert.True(t, IsPermanent(err))
		})
	}

	msg, err := codec.Encode(models.OutboxEvent{EventType: enums.EventOrderStatusChanged, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: env})
	require.NoError(t, err)
	assert.Equal(t, "e1", msg.EventID)

	_, err = NewCodec(config.PubSubConfig{})
	require.Error(t, err)
}

func TestBackoffCapsAndResets(t *testing.T) {
	b := newBackoff(100*time.Millisecond, 300*time.Millisecond)
	assert.GreaterOrEqual(t, b.fail(), 200*time.Millisecond)
	assert.GreaterOrEqual(t, b.fail(), 300*time.Millisecond)
	assert.Less(t, b.fail(), 300*time.Millisecond+jitter)
	b.reset()
	assert.Less(t, b.idle(), 100*time.Millisecond+jitter)
}
