package models

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/extra"
)

// Pricing is the derived, never persisted result of a pricing pass.
type Pricing struct {
	Subtotal  decimal.Decimal
	Total     decimal.Decimal
	ExtraRows extra.Rows
}

// NewPricing returns zero totals and empty rows.
func NewPricing() *Pricing {
	return &Pricing{
		Subtotal:  decimal.Zero,
		Total:     decimal.Zero,
		ExtraRows: extra.NewRows(),
	}
}

// ItemPricing adds the resolved unit price to the line pricing.
type ItemPricing struct {
	UnitPrice decimal.Decimal
	Pricing
}

// PricedTarget is anything modifiers can attach extra rows and charges to.
type PricedTarget interface {
	PricingState() *Pricing
}

// Purchasable is the product view consumed by pricing and order snapshots.
type Purchasable interface {
	ProductName() string
	ProductCode() string
	UnitPrice(ctx context.Context) (decimal.Decimal, error)
}

// ProductSnapshotter lets a product contribute extra fields to the frozen
// order item data.
type ProductSnapshotter interface {
	SnapshotData() map[string]any
}
