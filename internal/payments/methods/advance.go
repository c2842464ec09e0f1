package methods

import (
	"context"

	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// PayInAdvance puts the order on hold until a bank transfer arrives.
type PayInAdvance struct {
	deps *Deps
}

func NewPayInAdvance(deps *Deps) *PayInAdvance {
	return &PayInAdvance{deps: deps}
}

func (p *PayInAdvance) Identifier() string { return PayInAdvanceID }
func (p *PayInAdvance) Label() string      { return "Pay in advance" }

func (p *PayInAdvance) BasketPayment(ctx context.Context, basket *models.Basket) (*payments.Result, error) {
	order, err := p.deps.checkoutOrder(ctx, basket, enums.OrderStatusHold, nil)
	if err != nil {
		return nil, err
	}
	return payments.RedirectTo(p.deps.lastOrderURL(order)), nil
}
