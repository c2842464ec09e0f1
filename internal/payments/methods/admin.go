package methods

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backend/internal/identity"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// AdminPayment lets staff settle orders in full from the back office.
type AdminPayment struct {
	deps *Deps
}

func NewAdminPayment(deps *Deps) *AdminPayment {
	return &AdminPayment{deps: deps}
}

func (a *AdminPayment) Identifier() string { return AdminPaymentID }
func (a *AdminPayment) Label() string      { return "Admin payment" }

func (a *AdminPayment) IsEnabled(ctx context.Context) bool {
	id, ok := identity.FromContext(ctx)
	return ok && id.IsAuthenticated() && id.Staff
}

func (a *AdminPayment) BasketPayment(ctx context.Context, basket *models.Basket) (*payments.Result, error) {
	order, err := a.deps.checkoutOrder(ctx, basket, enums.OrderStatusCompleted, func(order *models.Order) error {
		return a.settle(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	return payments.RedirectTo(a.deps.lastOrderURL(order)), nil
}

func (a *AdminPayment) OrderPayment(ctx context.Context, order *models.Order) (*payments.Result, error) {
	svc, err := a.deps.orders()
	if err != nil {
		return nil, err
	}
	order.Status = enums.OrderStatusCompleted
	if err := svc.Save(ctx, order); err != nil {
		return nil, err
	}
	if err := a.settle(ctx, order); err != nil {
		return nil, err
	}
	return payments.RedirectTo(a.deps.lastOrderURL(order)), nil
}

func (a *AdminPayment) settle(ctx context.Context, order *models.Order) error {
	svc, err := a.deps.orders()
	if err != nil {
		return err
	}
	_, err = svc.Pay(ctx, order, order.Total, transactionID(ctx, order), AdminPaymentID)
	return err
}

func transactionID(ctx context.Context, order *models.Order) string {
	user := "anonymous"
	if id, ok := identity.FromContext(ctx); ok && id.IsAuthenticated() {
		user = id.UserID.String()
	}
	return fmt.Sprintf("admin-%s-%s", user, order.Ref)
}
