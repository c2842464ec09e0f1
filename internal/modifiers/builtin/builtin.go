package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/modifiers"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/extra"
)

const (
	DiscountID     = "discount"
	SpecialTaxID   = "special-tax"
	ShippingCostID = "shipping-cost"
)

var specialTaxThreshold = decimal.NewFromInt(99)

// Discount takes 10% off a non-empty basket.
type Discount struct {
	modifiers.Base
}

func NewDiscount() *Discount {
	return &Discount{Base: modifiers.Base{ID: DiscountID}}
}

func (d *Discount) ProcessBasket(_ context.Context, basket *models.Basket) error {
	if len(basket.Items) == 0 {
		return nil
	}
	amount := basket.Subtotal().Div(decimal.NewFromInt(-10))
	d.AddExtraRow(basket, "10% discount", amount)
	return nil
}

// SpecialTax adds 10% on lines whose total exceeds 99.
type SpecialTax struct {
	modifiers.Base
}

func NewSpecialTax() *SpecialTax {
	return &SpecialTax{Base: modifiers.Base{ID: SpecialTaxID}}
}

func (s *SpecialTax) ProcessItem(_ context.Context, item *models.BasketItem) error {
	total := item.PricingState().Total
	if !total.GreaterThan(specialTaxThreshold) {
		return nil
	}
	message := fmt.Sprintf("Price threshold is exceeded by %s", total.Sub(specialTaxThreshold).String())
	s.AddExtraRow(item, "Special tax", total.Div(decimal.NewFromInt(10)), modifiers.WithExtra(extra.Data{"message": message}))
	return nil
}

// ShippingCost adds a flat charge to a non-empty basket.
type ShippingCost struct {
	modifiers.Base
	Amount decimal.Decimal
}

func NewShippingCost(amount decimal.Decimal) *ShippingCost {
	return &ShippingCost{Base: modifiers.Base{ID: ShippingCostID}, Amount: amount}
}

func (s *ShippingCost) ProcessBasket(_ context.Context, basket *models.Basket) error {
	if len(basket.Items) == 0 {
		return nil
	}
	s.AddExtraRow(basket, "Shipping", s.Amount)
	return nil
}

// NewPool builds the configured modifier chain by name.
func NewPool(cfg config.BasketConfig) (*modifiers.Pool, error) {
	mods := make([]modifiers.Modifier, 0, len(cfg.Modifiers))
	for _, raw := range cfg.Modifiers {
		name := strings.TrimSpace(raw)
		switch name {
		case "":
			continue
		case DiscountID:
			mods = append(mods, NewDiscount())
		case SpecialTaxID:
			mods = append(mods, NewSpecialTax())
		case ShippingCostID:
			mods = append(mods, NewShippingCost(cfg.ShippingDecimal()))
		default:
			return nil, pkgerrors.New(pkgerrors.CodeConfiguration, fmt.Sprintf("unknown basket modifier %q", name))
		}
	}
	return modifiers.NewPool(mods...)
}
