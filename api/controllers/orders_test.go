package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/identity"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/money"
)

var testLogger = logger.New(logger.Options{ServiceName: "controllers-test", Output: io.Discard})

type stubOrders struct {
	orders.Service
	order   *models.Order
	refund  *orders.RefundResult
	changed enums.OrderStatus
	err     error
}

func (s *stubOrders) GetByRef(_ context.Context, ref string) (*models.Order, error) {
	if s.order == nil || s.order.Ref != ref {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return s.order, nil
}

func (s *stubOrders) GetForIdentity(ctx context.Context, _ identity.Identity, ref string) (*models.Order, error) {
	return s.GetByRef(ctx, ref)
}

func (s *stubOrders) Refund(context.Context, *models.Order) (*orders.RefundResult, error) {
	return s.refund, s.err
}

func (s *stubOrders) ChangeStatus(_ context.Context, order *models.Order, status enums.OrderStatus) error {
	if s.err != nil {
		return s.err
	}
	s.changed = status
	order.Status = status
	return nil
}

type stubPayer struct {
	checkout.Service
	result *payments.Result
	err    error
	method string
}

func (s *stubPayer) PayOrder(_ context.Context, _ *models.Order, method string) (*payments.Result, error) {
	s.method = method
	return s.result, s.err
}

func serve(t *testing.T, pattern, method, target, body string, h http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Method(method, pattern, h)
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestOrderRefundPartialFailureAnswers206(t *testing.T) {
	order := &models.Order{ID: uuid.New(), Ref: "2026-00001", Status: enums.OrderStatusProcessing}
	svc := &stubOrders{order: order, refund: &orders.RefundResult{
		Refunded: []models.OrderPayment{{ID: uuid.New(), Amount: decimal.NewFromInt(5), TransactionID: "a"}},
		Failed:   []models.OrderPayment{{ID: uuid.New(), Amount: decimal.NewFromInt(7), TransactionID: "b"}},
	}}

	resp := serve(t, "/orders/{ref}/refund", http.MethodPost, "/orders/2026-00001/refund", "",
		OrderRefund(svc, money.FormatPrice, testLogger))
	if resp.Code != http.StatusPartialContent {
		t.Fatalf("expected 206, got %d: %s", resp.Code, resp.Body.String())
	}
	var body struct {
		Data refundResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data.Refunded) != 1 || len(body.Data.Failed) != 1 {
		t.Fatalf("unexpected split %+v", body.Data)
	}
	if body.Data.Failed[0].Amount != "7.00" {
		t.Fatalf("expected formatted amount, got %q", body.Data.Failed[0].Amount)
	}
}

func TestOrderRefundFullSuccessAnswers200(t *testing.T) {
	order := &models.Order{ID: uuid.New(), Ref: "2026-00002"}
	svc := &stubOrders{order: order, refund: &orders.RefundResult{}}

	resp := serve(t, "/orders/{ref}/refund", http.MethodPost, "/orders/2026-00002/refund", "",
		OrderRefund(svc, money.FormatPrice, testLogger))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestOrderPayPaymentErrorAnswers402(t *testing.T) {
	order := &models.Order{ID: uuid.New(), Ref: "2026-00003", Status: enums.OrderStatusCreated}
	payer := &stubPayer{err: payments.PaymentError("Card declined.")}

	resp := serve(t, "/orders/{ref}/pay", http.MethodPost, "/orders/2026-00003/pay", `{"payment_method":"card"}`,
		OrderPay(&stubOrders{order: order}, payer, testLogger))
	if resp.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "Card declined.") {
		t.Fatalf("expected payment message in body: %s", resp.Body.String())
	}
	if payer.method != "card" {
		t.Fatalf("expected method card, got %q", payer.method)
	}
}

func TestOrderPaySetsLocation(t *testing.T) {
	order := &models.Order{ID: uuid.New(), Ref: "2026-00004"}
	payer := &stubPayer{result: payments.RedirectTo("https://psp.example/pay/1")}

	resp := serve(t, "/orders/{ref}/pay", http.MethodPost, "/orders/2026-00004/pay", `{"payment_method":"card"}`,
		OrderPay(&stubOrders{order: order}, payer, testLogger))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if got := resp.Header().Get("Location"); got != "https://psp.example/pay/1" {
		t.Fatalf("unexpected location %q", got)
	}
}

func TestOrderChangeStatus(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
		want   enums.OrderStatus
	}{
		{name: "lowercase accepted", body: `{"status":"shipped"}`, status: http.StatusOK, want: enums.OrderStatusShipped},
		{name: "unknown", body: `{"status":"lost"}`, status: http.StatusBadRequest},
		{name: "missing", body: `{}`, status: http.StatusBadRequest},
		{name: "rejected transition", body: `{"status":"NEW"}`, err: pkgerrors.New(pkgerrors.CodeStateConflict, "transition not allowed"), status: http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubOrders{order: &models.Order{ID: uuid.New(), Ref: "2026-00005", Status: enums.OrderStatusProcessing}, err: tc.err}
			resp := serve(t, "/orders/{ref}/status", http.MethodPut, "/orders/2026-00005/status", tc.body,
				OrderChangeStatus(svc, money.FormatPrice, testLogger))
			if resp.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, resp.Code, resp.Body.String())
			}
			if svc.changed != tc.want {
				t.Fatalf("expected change to %q, got %q", tc.want, svc.changed)
			}
		})
	}
}

func TestOrdersListRequiresUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req = req.WithContext(identity.WithContext(req.Context(), identity.Identity{SessionKey: "anon"}))
	resp := httptest.NewRecorder()

	OrdersList(&stubOrders{}, money.FormatPrice, testLogger)(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestOrderAddNoteRequiresMessage(t *testing.T) {
	svc := &stubOrders{order: &models.Order{ID: uuid.New(), Ref: "2026-00006"}}

	resp := serve(t, "/orders/{ref}/notes", http.MethodPost, "/orders/2026-00006/notes", `{"message":"   "}`,
		OrderAddNote(svc, testLogger))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
