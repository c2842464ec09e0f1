package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/extra"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type basketStore interface {
	Count(ctx context.Context, basket *models.Basket) (int, error)
	SetExtra(ctx context.Context, basket *models.Basket, data extra.Data) error
}

type orderChecker interface {
	IsPaid(ctx context.Context, order *models.Order) (bool, error)
	IsPayable(order *models.Order) bool
	ValidateAddress(value string) (string, error)
}

type methodPool interface {
	Payments(ctx context.Context, kind payments.Kind) []payments.PaymentMethod
	Get(ctx context.Context, identifier string, kind payments.Kind) (payments.PaymentMethod, bool)
}

// Service runs basket checkout and payment of existing orders.
type Service interface {
	Methods(ctx context.Context, basket *models.Basket) ([]MethodOption, error)
	OrderMethods(ctx context.Context, order *models.Order) ([]MethodOption, error)
	Checkout(ctx context.Context, basket *models.Basket, input Input) (*payments.Result, error)
	PayOrder(ctx context.Context, order *models.Order, method string) (*payments.Result, error)
}

// Input is the checkout form.
type Input struct {
	Email           string
	ShippingAddress string
	BillingAddress  string
	PaymentMethod   string
	Extra           extra.Data
}

// MethodOption is a payment method offered to the caller. Error holds the
// eligibility failure, if any.
type MethodOption struct {
	Identifier string `json:"identifier"`
	Label      string `json:"label"`
	Error      string `json:"error,omitempty"`
}

type ServiceParams struct {
	Baskets  basketStore
	Orders   orderChecker
	Payments methodPool
	Logger   *logger.Logger
}

type service struct {
	baskets  basketStore
	orders   orderChecker
	payments methodPool
	validate *validator.Validate
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Baskets == nil {
		return nil, fmt.Errorf("basket service required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment pool required")
	}
	return &service{
		baskets:  params.Baskets,
		orders:   params.Orders,
		payments: params.Payments,
		validate: validator.New(),
		logg:     params.Logger,
	}, nil
}

func (s *service) Methods(ctx context.Context, basket *models.Basket) ([]MethodOption, error) {
	methods := s.payments.Payments(ctx, payments.KindBasket)
	out := make([]MethodOption, 0, len(methods))
	for _, method := range methods {
		option := MethodOption{Identifier: method.Identifier(), Label: method.Label()}
		if err := s.validateBasket(ctx, method, basket); err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
				return nil, err
			}
			option.Error = message(err)
		}
		out = append(out, option)
	}
	return out, nil
}

func (s *service) OrderMethods(ctx context.Context, order *models.Order) ([]MethodOption, error) {
	methods := s.payments.Payments(ctx, payments.KindOrder)
	out := make([]MethodOption, 0, len(methods))
	for _, method := range methods {
		option := MethodOption{Identifier: method.Identifier(), Label: method.Label()}
		if err := s.validateOrder(ctx, method, order); err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
				return nil, err
			}
			option.Error = message(err)
		}
		out = append(out, option)
	}
	return out, nil
}

func (s *service) Checkout(ctx context.Context, basket *models.Basket, input Input) (*payments.Result, error) {
	method, err := s.method(ctx, input.PaymentMethod, payments.KindBasket)
	if err != nil {
		return nil, err
	}
	if err := s.validateBasket(ctx, method, basket); err != nil {
		return nil, translate(err)
	}

	email := strings.TrimSpace(input.Email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Enter a valid email address.")
	}
	shipping, err := s.orders.ValidateAddress(input.ShippingAddress)
	if err != nil {
		return nil, translate(err)
	}
	billing, err := s.orders.ValidateAddress(input.BillingAddress)
	if err != nil {
		return nil, translate(err)
	}

	data := basket.Extra.Clone()
	for key, value := range input.Extra {
		if value == nil {
			delete(data, key)
			continue
		}
		data[key] = value
	}
	data["email"] = email
	data["shipping_address"] = shipping
	data["billing_address"] = billing
	if err := s.baskets.SetExtra(ctx, basket, data); err != nil {
		return nil, err
	}

	payer := method.(payments.BasketPayer)
	result, err := payer.BasketPayment(ctx, basket)
	if err != nil {
		s.logFailure(ctx, method, err)
		return nil, translate(err)
	}
	return result, nil
}

func (s *service) PayOrder(ctx context.Context, order *models.Order, identifier string) (*payments.Result, error) {
	method, err := s.method(ctx, identifier, payments.KindOrder)
	if err != nil {
		return nil, err
	}
	if err := s.validateOrder(ctx, method, order); err != nil {
		return nil, translate(err)
	}
	payer := method.(payments.OrderPayer)
	result, err := payer.OrderPayment(ctx, order)
	if err != nil {
		s.logFailure(ctx, method, err)
		return nil, translate(err)
	}
	return result, nil
}

func (s *service) method(ctx context.Context, identifier string, kind payments.Kind) (payments.PaymentMethod, error) {
	identifier = strings.TrimSpace(identifier)
	method, ok := s.payments.Get(ctx, identifier, kind)
	if !ok || !payments.Enabled(ctx, method) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("Payment method %q is not available.", identifier))
	}
	return method, nil
}

func (s *service) validateBasket(ctx context.Context, method payments.PaymentMethod, basket *models.Basket) error {
	if v, ok := method.(payments.BasketValidator); ok {
		return v.ValidateBasket(ctx, basket)
	}
	count, err := s.baskets.Count(ctx, basket)
	if err != nil {
		return err
	}
	return payments.CheckBasket(count)
}

func (s *service) validateOrder(ctx context.Context, method payments.PaymentMethod, order *models.Order) error {
	if v, ok := method.(payments.OrderValidator); ok {
		return v.ValidateOrder(ctx, order)
	}
	paid, err := s.orders.IsPaid(ctx, order)
	if err != nil {
		return err
	}
	return payments.CheckOrder(order, paid, s.orders.IsPayable(order))
}

func message(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Message()
	}
	return err.Error()
}

// translate keeps typed errors and turns anything else into a payment error.
func translate(err error) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodePayment, err, err.Error())
}

func (s *service) logFailure(ctx context.Context, method payments.PaymentMethod, err error) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithField(ctx, "payment_method", method.Identifier())
	s.logg.Warn(logCtx, "payment failed: "+err.Error())
}
