package payments

import (
	"context"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Kind selects which payment flow a method takes part in.
type Kind string

const (
	KindAny    Kind = ""
	KindBasket Kind = "basket"
	KindOrder  Kind = "order"
)

// PaymentMethod is the minimum every registered method provides. Everything
// else is an optional capability discovered through the interfaces below.
type PaymentMethod interface {
	Identifier() string
	Label() string
}

// Enabler lets a method hide itself for the current caller.
type Enabler interface {
	IsEnabled(ctx context.Context) bool
}

// BasketValidator replaces the default basket eligibility rule.
type BasketValidator interface {
	ValidateBasket(ctx context.Context, basket *models.Basket) error
}

// OrderValidator replaces the default order eligibility rule.
type OrderValidator interface {
	ValidateOrder(ctx context.Context, order *models.Order) error
}

// BasketPayer turns a basket into an order.
type BasketPayer interface {
	BasketPayment(ctx context.Context, basket *models.Basket) (*Result, error)
}

// OrderPayer pays an existing order.
type OrderPayer interface {
	OrderPayment(ctx context.Context, order *models.Order) (*Result, error)
}

// Refunder reverses a recorded payment. True means the refund completed.
type Refunder interface {
	RefundPayment(ctx context.Context, payment *models.OrderPayment) (bool, error)
}

// Result is either a redirect URL or structured data for the client.
type Result struct {
	URL  string         `json:"url,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

// RedirectTo builds a URL result.
func RedirectTo(url string) *Result {
	return &Result{URL: url}
}

// PaymentError is the recoverable failure a method reports to the customer.
func PaymentError(message string) error {
	return pkgerrors.New(pkgerrors.CodePayment, message)
}

// Supports reports whether method implements the payer interface for kind.
func Supports(method PaymentMethod, kind Kind) bool {
	switch kind {
	case KindBasket:
		_, ok := method.(BasketPayer)
		return ok
	case KindOrder:
		_, ok := method.(OrderPayer)
		return ok
	default:
		return true
	}
}

// Enabled reports whether method is available; methods without an Enabler
// always are.
func Enabled(ctx context.Context, method PaymentMethod) bool {
	enabler, ok := method.(Enabler)
	if !ok {
		return true
	}
	return enabler.IsEnabled(ctx)
}

// Refund calls the method's Refunder. Methods without one never refund.
func Refund(ctx context.Context, method PaymentMethod, payment *models.OrderPayment) (bool, error) {
	refunder, ok := method.(Refunder)
	if !ok {
		return false, nil
	}
	return refunder.RefundPayment(ctx, payment)
}
