package builtin

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/modifiers"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type fixedPrice decimal.Decimal

func (p fixedPrice) ProductName() string { return "product" }
func (p fixedPrice) ProductCode() string { return "P" }
func (p fixedPrice) UnitPrice(context.Context) (decimal.Decimal, error) {
	return decimal.Decimal(p), nil
}

func line(ref, price string, qty int) models.BasketItem {
	return models.BasketItem{Ref: ref, Quantity: qty, Product: fixedPrice(decimal.RequireFromString(price))}
}

func run(t *testing.T, names []string, items ...models.BasketItem) *models.Basket {
	t.Helper()
	pool, err := NewPool(config.BasketConfig{Modifiers: names, ShippingAmount: "30"})
	require.NoError(t, err)
	basket := &models.Basket{Items: items}
	require.NoError(t, modifiers.NewPipeline(pool, nil, nil).Run(context.Background(), basket))
	return basket
}

func TestDiscountShippingAndSpecialTax(t *testing.T) {
	basket := run(t, []string{SpecialTaxID, DiscountID, ShippingCostID},
		line("cheap", "20", 2),
		line("pricey", "120", 1),
	)

	pricey := basket.Items[1].Pricing
	assert.True(t, pricey.Total.Equal(decimal.NewFromInt(132)), "pricey total %s", pricey.Total)
	row, ok := pricey.ExtraRows.Get(SpecialTaxID)
	require.True(t, ok)
	assert.Equal(t, "Price threshold is exceeded by 21", row.Extra["message"])

	cheap := basket.Items[0].Pricing
	assert.Empty(t, cheap.ExtraRows)

	// subtotal 40 + 132 = 172, discount -17.2, shipping +30
	assert.True(t, basket.Subtotal().Equal(decimal.NewFromInt(172)), "subtotal %s", basket.Subtotal())
	assert.True(t, basket.Total().Equal(decimal.RequireFromString("184.8")), "total %s", basket.Total())
	assert.Equal(t, []string{DiscountID, ShippingCostID}, basket.Pricing.ExtraRows.Identifiers())
}

func TestEmptyBasketGetsNoBasketRows(t *testing.T) {
	basket := run(t, []string{DiscountID, ShippingCostID})
	assert.Empty(t, basket.Pricing.ExtraRows)
	assert.True(t, basket.Total().IsZero())
}

func TestSpecialTaxThresholdIsExclusive(t *testing.T) {
	basket := run(t, []string{SpecialTaxID}, line("edge", "99", 1))
	assert.Empty(t, basket.Items[0].Pricing.ExtraRows)
}

func TestNewPoolRejectsUnknownNames(t *testing.T) {
	_, err := NewPool(config.BasketConfig{Modifiers: []string{"discount", "loyalty"}})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConfiguration))

	_, err = NewPool(config.BasketConfig{Modifiers: []string{"discount", " discount"}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConfiguration), "duplicates are rejected by the pool")
}
