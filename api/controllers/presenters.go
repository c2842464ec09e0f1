package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/extra"
	"github.com/angelmondragon/storefront-backend/pkg/money"
)

type extraRowResponse struct {
	Identifier string     `json:"identifier"`
	Label      string     `json:"label"`
	Amount     string     `json:"amount"`
	Extra      extra.Data `json:"extra,omitempty"`
}

type basketItemResponse struct {
	ID          uuid.UUID          `json:"id"`
	Ref         string             `json:"ref"`
	ProductType string             `json:"product_type"`
	ProductID   string             `json:"product_id"`
	ProductName string             `json:"product_name,omitempty"`
	ProductCode string             `json:"product_code,omitempty"`
	Quantity    int                `json:"quantity"`
	UnitPrice   string             `json:"unit_price"`
	Subtotal    string             `json:"subtotal"`
	Total       string             `json:"total"`
	ExtraRows   []extraRowResponse `json:"extra_rows"`
	Extra       extra.Data         `json:"extra"`
}

type basketResponse struct {
	ID        uuid.UUID            `json:"id"`
	Items     []basketItemResponse `json:"items"`
	Quantity  int                  `json:"quantity"`
	Subtotal  string               `json:"subtotal"`
	Total     string               `json:"total"`
	ExtraRows []extraRowResponse   `json:"extra_rows"`
	Extra     extra.Data           `json:"extra"`
}

type orderItemResponse struct {
	ProductType string             `json:"product_type"`
	ProductID   string             `json:"product_id"`
	ProductName string             `json:"product_name"`
	ProductCode string             `json:"product_code"`
	ProductData extra.Data         `json:"product_data"`
	Quantity    int                `json:"quantity"`
	UnitPrice   string             `json:"unit_price"`
	Subtotal    string             `json:"subtotal"`
	Total       string             `json:"total"`
	ExtraRows   []extraRowResponse `json:"extra_rows"`
	Extra       extra.Data         `json:"extra"`
}

type orderSummaryResponse struct {
	Ref         string            `json:"ref"`
	Status      enums.OrderStatus `json:"status"`
	StatusLabel string            `json:"status_label"`
	Total       string            `json:"total"`
	CreatedAt   time.Time         `json:"created_at"`
}

type orderResponse struct {
	orderSummaryResponse
	Email             string              `json:"email"`
	ShippingAddress   string              `json:"shipping_address"`
	BillingAddress    string              `json:"billing_address"`
	Subtotal          string              `json:"subtotal"`
	ExtraRows         []extraRowResponse  `json:"extra_rows"`
	Extra             extra.Data          `json:"extra"`
	Items             []orderItemResponse `json:"items"`
	AmountPaid        string              `json:"amount_paid"`
	AmountOutstanding string              `json:"amount_outstanding"`
	IsPaid            bool                `json:"is_paid"`
	Notes             []noteResponse      `json:"notes,omitempty"`
}

type orderListResponse struct {
	Orders     []orderSummaryResponse `json:"orders"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}

type paymentResponse struct {
	ID            uuid.UUID `json:"id"`
	Amount        string    `json:"amount"`
	TransactionID string    `json:"transaction_id"`
	PaymentMethod string    `json:"payment_method"`
	CreatedAt     time.Time `json:"created_at"`
}

type refundResponse struct {
	Refunded []paymentResponse `json:"refunded"`
	Failed   []paymentResponse `json:"failed"`
}

type noteResponse struct {
	ID        uuid.UUID `json:"id"`
	Message   string    `json:"message"`
	Public    bool      `json:"public"`
	CreatedAt time.Time `json:"created_at"`
}

func presentRows(format money.Formatter, rows extra.Rows) []extraRowResponse {
	out := make([]extraRowResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, extraRowResponse{
			Identifier: row.Identifier,
			Label:      row.Label,
			Amount:     format(row.Amount),
			Extra:      row.Extra,
		})
	}
	return out
}

func presentBasketItem(format money.Formatter, item *models.BasketItem) basketItemResponse {
	resp := basketItemResponse{
		ID:          item.ID,
		Ref:         item.Ref,
		ProductType: item.ProductType,
		ProductID:   item.ProductID,
		Quantity:    item.Quantity,
		UnitPrice:   format(item.UnitPrice()),
		Extra:       orEmpty(item.Extra),
	}
	if item.Product != nil {
		resp.ProductName = item.Product.ProductName()
		resp.ProductCode = item.Product.ProductCode()
	}
	pricing := item.PricingState()
	resp.Subtotal = format(pricing.Subtotal)
	resp.Total = format(pricing.Total)
	resp.ExtraRows = presentRows(format, pricing.ExtraRows)
	return resp
}

func presentBasket(format money.Formatter, basket *models.Basket) basketResponse {
	resp := basketResponse{
		ID:        basket.ID,
		Items:     make([]basketItemResponse, 0, len(basket.Items)),
		Subtotal:  format(basket.Subtotal()),
		Total:     format(basket.Total()),
		ExtraRows: presentRows(format, basket.PricingState().ExtraRows),
		Extra:     orEmpty(basket.Extra),
	}
	for i := range basket.Items {
		resp.Items = append(resp.Items, presentBasketItem(format, &basket.Items[i]))
		resp.Quantity += basket.Items[i].Quantity
	}
	return resp
}

func presentOrderSummary(format money.Formatter, order *models.Order) orderSummaryResponse {
	return orderSummaryResponse{
		Ref:         order.Ref,
		Status:      order.Status,
		StatusLabel: order.Status.Label(),
		Total:       format(order.Total),
		CreatedAt:   order.CreatedAt,
	}
}

func presentOrderList(format money.Formatter, list *orders.OrderList) orderListResponse {
	resp := orderListResponse{Orders: make([]orderSummaryResponse, 0, len(list.Orders)), NextCursor: list.NextCursor}
	for i := range list.Orders {
		resp.Orders = append(resp.Orders, presentOrderSummary(format, &list.Orders[i]))
	}
	return resp
}

func presentOrderItems(format money.Formatter, items []models.OrderItem) []orderItemResponse {
	out := make([]orderItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, orderItemResponse{
			ProductType: item.ProductType,
			ProductID:   item.ProductID,
			ProductName: item.Name(),
			ProductCode: item.Code(),
			ProductData: orEmpty(item.ProductData),
			Quantity:    item.Quantity,
			UnitPrice:   format(item.UnitPrice),
			Subtotal:    format(item.Subtotal),
			Total:       format(item.Total),
			ExtraRows:   presentRows(format, item.ExtraRows),
			Extra:       orEmpty(item.Extra),
		})
	}
	return out
}

func presentPayments(format money.Formatter, payments []models.OrderPayment) []paymentResponse {
	out := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, paymentResponse{
			ID:            p.ID,
			Amount:        format(p.Amount),
			TransactionID: p.TransactionID,
			PaymentMethod: p.PaymentMethod,
			CreatedAt:     p.CreatedAt,
		})
	}
	return out
}

func presentNotes(notes []models.OrderNote) []noteResponse {
	out := make([]noteResponse, 0, len(notes))
	for _, n := range notes {
		out = append(out, noteResponse{ID: n.ID, Message: n.Message, Public: n.Public, CreatedAt: n.CreatedAt})
	}
	return out
}

func orEmpty(data extra.Data) extra.Data {
	if data == nil {
		return extra.Data{}
	}
	return data
}
