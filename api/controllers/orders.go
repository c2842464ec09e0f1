package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/identity"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

const maxNoteLength = 4000

type statusRequest struct {
	Status string `json:"status" validate:"notblank"`
}

type noteRequest struct {
	Message string `json:"message" validate:"notblank"`
	Public  bool   `json:"public"`
}

// OrdersList pages through the authenticated caller's orders, newest first.
func OrdersList(svc orders.Service, format money.Formatter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := identity.FromContext(r.Context())
		if !id.IsAuthenticated() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}
		limit, err := validators.QueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListForUser(r.Context(), *id.UserID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, presentOrderList(format, list))
	}
}

// OrderLast returns the caller's latest order, or the one matching ?token=.
func OrderLast(svc orders.Service, format money.Formatter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := identity.FromContext(r.Context())
		order, err := svc.LastForIdentity(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeOrderDetail(w, r, svc, format, logg, order, id.Staff)
	}
}

func OrderDetail(svc orders.Service, format money.Formatter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, id, err := orderForCaller(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeOrderDetail(w, r, svc, format, logg, order, id.Staff)
	}
}

func OrderPaymentMethods(svc orders.Service, payer checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, _, err := orderForCaller(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		options, err := payer.OrderMethods(r.Context(), order)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, options)
	}
}

func OrderPay(svc orders.Service, payer checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req payRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, _, err := orderForCaller(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := payer.PayOrder(r.Context(), order, req.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writePaymentResult(w, result)
	}
}

// OrderRefund refunds every payment. Partial failure answers 206 with both
// lists and leaves the status untouched.
func OrderRefund(svc orders.Service, format money.Formatter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := svc.GetByRef(r.Context(), chi.URLParam(r, "ref"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Refund(r.Context(), order)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusOK
		if len(result.Failed) > 0 {
			status = http.StatusPartialContent
		}
		responses.WriteSuccessStatus(w, status, refundResponse{
			Refunded: presentPayments(format, result.Refunded),
			Failed:   presentPayments(format, result.Failed),
		})
	}
}

func OrderChangeStatus(svc orders.Service, format money.Formatter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req statusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := enums.OrderStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
		if !status.IsValid() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").
				WithDetails(map[string]any{"status": req.Status}))
			return
		}
		order, err := svc.GetByRef(r.Context(), chi.URLParam(r, "ref"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.ChangeStatus(r.Context(), order, status); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, presentOrderSummary(format, order))
	}
}

func OrderNotes(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := svc.GetByRef(r.Context(), chi.URLParam(r, "ref"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		notes, err := svc.Notes(r.Context(), order, false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, presentNotes(notes))
	}
}

func OrderAddNote(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req noteRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		message := validators.Text(req.Message, maxNoteLength)
		if message == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "note message is required"))
			return
		}
		order, err := svc.GetByRef(r.Context(), chi.URLParam(r, "ref"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		note, err := svc.AddNote(r.Context(), order, message, req.Public)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, presentNotes([]models.OrderNote{*note})[0])
	}
}

func orderForCaller(r *http.Request, svc orders.Service) (*models.Order, identity.Identity, error) {
	id, _ := identity.FromContext(r.Context())
	order, err := svc.GetForIdentity(r.Context(), id, chi.URLParam(r, "ref"))
	return order, id, err
}

func writeOrderDetail(w http.ResponseWriter, r *http.Request, svc orders.Service, format money.Formatter, logg *logger.Logger, order *models.Order, staff bool) {
	resp, err := orderDetail(r.Context(), svc, format, order, staff)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, resp)
}

func orderDetail(ctx context.Context, svc orders.Service, format money.Formatter, order *models.Order, staff bool) (*orderResponse, error) {
	items, err := svc.Items(ctx, order)
	if err != nil {
		return nil, err
	}
	paid, err := svc.AmountPaid(ctx, order)
	if err != nil {
		return nil, err
	}
	outstanding, err := svc.AmountOutstanding(ctx, order)
	if err != nil {
		return nil, err
	}
	notes, err := svc.Notes(ctx, order, !staff)
	if err != nil {
		return nil, err
	}
	return &orderResponse{
		orderSummaryResponse: presentOrderSummary(format, order),
		Email:                order.Email,
		ShippingAddress:      order.ShippingAddress,
		BillingAddress:       order.BillingAddress,
		Subtotal:             format(order.Subtotal),
		ExtraRows:            presentRows(format, order.ExtraRows),
		Extra:                orEmpty(order.Extra),
		Items:                presentOrderItems(format, items),
		AmountPaid:           format(paid),
		AmountOutstanding:    format(outstanding),
		IsPaid:               !outstanding.IsPositive(),
		Notes:                presentNotes(notes),
	}, nil
}
