package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/basket"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/extra"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type checkoutRequest struct {
	Email           string     `json:"email" validate:"required,max=254"`
	ShippingAddress string     `json:"shipping_address" validate:"max=2000"`
	BillingAddress  string     `json:"billing_address" validate:"max=2000"`
	PaymentMethod   string     `json:"payment_method" validate:"required,max=128"`
	Extra           extra.Data `json:"extra"`
}

type payRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required,max=128"`
}

// CheckoutMethods lists the basket payment methods with their eligibility.
func CheckoutMethods(baskets basket.Service, svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := pricedBasket(r.Context(), baskets)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		options, err := svc.Methods(r.Context(), b)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, options)
	}
}

// CheckoutSubmit turns the basket into an order through the chosen method.
func CheckoutSubmit(baskets basket.Service, svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		b, err := resolveBasket(r.Context(), baskets)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Checkout(r.Context(), b, checkout.Input{
			Email:           req.Email,
			ShippingAddress: req.ShippingAddress,
			BillingAddress:  req.BillingAddress,
			PaymentMethod:   req.PaymentMethod,
			Extra:           req.Extra,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writePaymentResult(w, result)
	}
}

func writePaymentResult(w http.ResponseWriter, result *payments.Result) {
	if result == nil {
		result = &payments.Result{}
	}
	if result.URL != "" {
		w.Header().Set("Location", result.URL)
	}
	responses.WriteSuccess(w, result)
}
