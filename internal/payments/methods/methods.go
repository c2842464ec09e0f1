// Package methods holds the payment methods shipped with the storefront.
package methods

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	PayInAdvanceID   = "pay-in-advance"
	CashOnDeliveryID = "cash-on-delivery"
	AdminPaymentID   = "admin-payment"
)

const lastOrderPath = "/api/v1/orders/last"

type orderService interface {
	CreateFromBasket(ctx context.Context, basket *models.Basket, opts ...orders.PopulateOption) (*models.Order, error)
	Pay(ctx context.Context, order *models.Order, amount decimal.Decimal, transactionID, paymentMethod string) (*models.OrderPayment, error)
	ChangeStatus(ctx context.Context, order *models.Order, status enums.OrderStatus) error
	Save(ctx context.Context, order *models.Order) error
}

type basketDeleter interface {
	Delete(ctx context.Context, basket *models.Basket) error
}

type paymentRemover interface {
	DeletePayment(ctx context.Context, id uuid.UUID) error
}

// Deps is shared by the built-in methods. Orders may be set after the pool is
// built since the order service itself needs the pool for refunds.
type Deps struct {
	Orders   orderService
	Baskets  basketDeleter
	Payments paymentRemover
	SiteURL  string
}

func (d *Deps) orders() (orderService, error) {
	if d == nil || d.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "payment methods are not bound to the order service")
	}
	return d.Orders, nil
}

// lastOrderURL points the customer at the token protected last-order view.
func (d *Deps) lastOrderURL(order *models.Order) string {
	base := strings.TrimRight(d.SiteURL, "/")
	return base + lastOrderPath + "?token=" + url.QueryEscape(order.Token)
}

// checkoutOrder creates an order from basket in status, runs settle on it and
// drops the basket.
func (d *Deps) checkoutOrder(ctx context.Context, basket *models.Basket, status enums.OrderStatus, settle func(*models.Order) error) (*models.Order, error) {
	svc, err := d.orders()
	if err != nil {
		return nil, err
	}
	order, err := svc.CreateFromBasket(ctx, basket, orders.WithStatus(status))
	if err != nil {
		return nil, err
	}
	if settle != nil {
		if err := settle(order); err != nil {
			return nil, err
		}
	}
	if d.Baskets != nil {
		if err := d.Baskets.Delete(ctx, basket); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// NewPool builds the payment pool from configured method names.
func NewPool(cfg config.PaymentsConfig, deps *Deps) (*payments.Pool, error) {
	list := make([]payments.PaymentMethod, 0, len(cfg.Methods))
	for _, raw := range cfg.Methods {
		name := strings.TrimSpace(raw)
		switch name {
		case PayInAdvanceID:
			list = append(list, NewPayInAdvance(deps))
		case CashOnDeliveryID:
			list = append(list, NewCashOnDelivery(deps))
		case AdminPaymentID:
			list = append(list, NewAdminPayment(deps))
		default:
			return nil, pkgerrors.New(pkgerrors.CodeConfiguration, fmt.Sprintf("unknown payment method %q", name))
		}
	}
	return payments.NewPool(list...)
}
