package models

import "github.com/google/uuid"

// ensureID assigns a v4 id when the row has none. Postgres also defaults ids
// in the migrations; SQLite relies on this.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model, used by the SQLite schema bootstrap and
// repository tests.
func All() []any {
	return []any{
		&Product{},
		&Basket{},
		&BasketItem{},
		&Order{},
		&OrderItem{},
		&OrderPayment{},
		&OrderNote{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
