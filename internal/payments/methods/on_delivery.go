package methods

import (
	"context"

	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// CashOnDelivery ships first and collects payment at the door.
type CashOnDelivery struct {
	deps *Deps
}

func NewCashOnDelivery(deps *Deps) *CashOnDelivery {
	return &CashOnDelivery{deps: deps}
}

func (c *CashOnDelivery) Identifier() string { return CashOnDeliveryID }
func (c *CashOnDelivery) Label() string      { return "Cash on delivery" }

func (c *CashOnDelivery) BasketPayment(ctx context.Context, basket *models.Basket) (*payments.Result, error) {
	order, err := c.deps.checkoutOrder(ctx, basket, enums.OrderStatusProcessing, nil)
	if err != nil {
		return nil, err
	}
	return payments.RedirectTo(c.deps.lastOrderURL(order)), nil
}

// OrderPayment moves a pending order into processing; the money is recorded
// by the merchant on delivery.
func (c *CashOnDelivery) OrderPayment(ctx context.Context, order *models.Order) (*payments.Result, error) {
	svc, err := c.deps.orders()
	if err != nil {
		return nil, err
	}
	if err := svc.ChangeStatus(ctx, order, enums.OrderStatusProcessing); err != nil {
		return nil, err
	}
	return payments.RedirectTo(c.deps.lastOrderURL(order)), nil
}

// RefundPayment drops the recorded payment; nothing was charged online.
func (c *CashOnDelivery) RefundPayment(ctx context.Context, payment *models.OrderPayment) (bool, error) {
	if c.deps == nil || c.deps.Payments == nil {
		return false, nil
	}
	if err := c.deps.Payments.DeletePayment(ctx, payment.ID); err != nil {
		return false, err
	}
	return true, nil
}
