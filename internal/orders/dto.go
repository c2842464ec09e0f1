package orders

import (
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/extra"
)

// StatusChange describes one persisted status move.
type StatusChange struct {
	Order     *models.Order
	NewStatus enums.OrderStatus
	OldStatus enums.OrderStatus
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// RefundResult splits an order's payments by refund outcome.
type RefundResult struct {
	Refunded []models.OrderPayment `json:"refunded"`
	Failed   []models.OrderPayment `json:"failed"`
}

// PopulateOption overrides fields after an order is filled from a basket.
type PopulateOption func(*populateOverrides)

type populateOverrides struct {
	status *enums.OrderStatus
	email  *string
	extra  extra.Data
}

// WithStatus sets the order status regardless of the transition table.
func WithStatus(status enums.OrderStatus) PopulateOption {
	return func(o *populateOverrides) { o.status = &status }
}

func WithEmail(email string) PopulateOption {
	return func(o *populateOverrides) { o.email = &email }
}

// WithExtra merges data over the extra copied from the basket.
func WithExtra(data extra.Data) PopulateOption {
	return func(o *populateOverrides) { o.extra = data }
}
