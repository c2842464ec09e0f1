package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/basket"
	"github.com/angelmondragon/storefront-backend/internal/identity"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/extra"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/money"
)

type addItemRequest struct {
	ProductType string     `json:"product_type" validate:"required,max=64"`
	ProductID   string     `json:"product_id" validate:"required,max=64"`
	Quantity    int        `json:"quantity" validate:"omitempty,min=1"`
	Ref         string     `json:"ref" validate:"omitempty,max=128"`
	Extra       extra.Data `json:"extra"`
}

type updateItemRequest struct {
	Quantity *int       `json:"quantity" validate:"omitempty,min=1"`
	Extra    extra.Data `json:"extra"`
}

type extraRequest struct {
	Extra extra.Data `json:"extra"`
}

// resolveBasket returns the caller's basket, creating it when needed.
func resolveBasket(ctx context.Context, svc basket.Service) (*models.Basket, error) {
	id, _ := identity.FromContext(ctx)
	b, _, err := svc.Resolve(ctx, id)
	return b, err
}

// pricedBasket resolves and prices the caller's basket.
func pricedBasket(ctx context.Context, svc basket.Service) (*models.Basket, error) {
	b, err := resolveBasket(ctx, svc)
	if err != nil {
		return nil, err
	}
	if err := svc.Update(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func BasketGet(svc basket.Service, format money.Formatter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := pricedBasket(r.Context(), svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, presentBasket(format, b))
	}
}

func BasketClear(svc basket.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := resolveBasket(r.Context(), svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Clear(r.Context(), b); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func BasketItems(svc basket.Service, format money.Formatter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := pricedBasket(r.Context(), svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := make([]basketItemResponse, 0, len(b.Items))
		for i := range b.Items {
			items = append(items, presentBasketItem(format, &b.Items[i]))
		}
		responses.WriteSuccess(w, items)
	}
}

func BasketAddItem(svc basket.Service, format money.Formatter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quantity := req.Quantity
		if quantity == 0 {
			quantity = 1
		}

		b, err := resolveBasket(r.Context(), svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.Add(r.Context(), b, basket.AddInput{
			ProductType: strings.TrimSpace(req.ProductType),
			ProductID:   strings.TrimSpace(req.ProductID),
			Quantity:    quantity,
			Ref:         strings.TrimSpace(req.Ref),
			Extra:       req.Extra,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writePricedItem(w, r, svc, format, logg, b, item.Ref, http.StatusCreated)
	}
}

func BasketUpdateItem(svc basket.Service, format money.Formatter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ref := chi.URLParam(r, "ref")
		b, err := resolveBasket(r.Context(), svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.UpdateItem(r.Context(), b, ref, basket.UpdateItemInput{Quantity: req.Quantity, Extra: req.Extra})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writePricedItem(w, r, svc, format, logg, b, item.Ref, http.StatusOK)
	}
}

func BasketRemoveItem(svc basket.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := resolveBasket(r.Context(), svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Remove(r.Context(), b, chi.URLParam(r, "ref")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func BasketGetExtra(svc basket.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := resolveBasket(r.Context(), svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, extraRequest{Extra: orEmpty(b.Extra)})
	}
}

func BasketSetExtra(svc basket.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req extraRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		b, err := resolveBasket(r.Context(), svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.SetExtra(r.Context(), b, orEmpty(req.Extra)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, extraRequest{Extra: orEmpty(b.Extra)})
	}
}

func writePricedItem(w http.ResponseWriter, r *http.Request, svc basket.Service, format money.Formatter, logg *logger.Logger, b *models.Basket, ref string, status int) {
	if err := svc.Update(r.Context(), b); err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	for i := range b.Items {
		if b.Items[i].Ref == ref {
			responses.WriteSuccessStatus(w, status, presentBasketItem(format, &b.Items[i]))
			return
		}
	}
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "priced item missing"))
}
