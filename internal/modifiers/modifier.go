package modifiers

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/extra"
)

// Modifier adjusts basket pricing. It implements any subset of the hook
// interfaces below; missing hooks are skipped.
type Modifier interface {
	Identifier() string
}

type BasketSetup interface {
	SetupBasket(ctx context.Context, basket *models.Basket) error
}

type ItemSetup interface {
	SetupItem(ctx context.Context, item *models.BasketItem) error
}

type ItemProcessor interface {
	ProcessItem(ctx context.Context, item *models.BasketItem) error
}

type ItemFinalizer interface {
	FinalizeItem(ctx context.Context, item *models.BasketItem) error
}

type BasketProcessor interface {
	ProcessBasket(ctx context.Context, basket *models.Basket) error
}

type BasketFinalizer interface {
	FinalizeBasket(ctx context.Context, basket *models.Basket) error
}

// Base is embedded by concrete modifiers to get an identifier and AddExtraRow.
type Base struct {
	ID string
}

func (b Base) Identifier() string { return b.ID }

type rowOptions struct {
	identifier string
	charge     bool
	extra      extra.Data
}

// RowOption tunes AddExtraRow.
type RowOption func(*rowOptions)

// WithIdentifier stores the row under id instead of the modifier identifier.
func WithIdentifier(id string) RowOption {
	return func(o *rowOptions) { o.identifier = id }
}

// WithoutCharge records the row without touching the target total.
func WithoutCharge() RowOption {
	return func(o *rowOptions) { o.charge = false }
}

// WithExtra attaches metadata to the row.
func WithExtra(data extra.Data) RowOption {
	return func(o *rowOptions) { o.extra = data }
}

// AddExtraRow records a labelled amount on the target. A row with the same
// identifier is overwritten in place. When charged, the amount is added to the
// target total on every call, including overwrites.
func (b Base) AddExtraRow(target models.PricedTarget, label string, amount decimal.Decimal, opts ...RowOption) {
	o := rowOptions{identifier: b.ID, charge: true}
	for _, opt := range opts {
		opt(&o)
	}
	state := target.PricingState()
	state.ExtraRows.Set(extra.Row{
		Identifier: o.identifier,
		Label:      label,
		Amount:     amount,
		Extra:      o.extra,
	})
	if o.charge {
		state.Total = state.Total.Add(amount)
	}
}
