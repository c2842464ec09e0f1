package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/extra"
)

// Order is the frozen record produced from a priced basket.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID          *uuid.UUID        `gorm:"column:user_id;type:uuid;index"`
	Ref             string            `gorm:"column:ref;type:varchar(128);not null;uniqueIndex"`
	Token           string            `gorm:"column:token;type:varchar(128);not null;uniqueIndex"`
	Status          enums.OrderStatus `gorm:"column:status;type:varchar(32);not null"`
	Email           string            `gorm:"column:email;not null;default:''"`
	ShippingAddress string            `gorm:"column:shipping_address;not null;default:''"`
	BillingAddress  string            `gorm:"column:billing_address;not null;default:''"`
	Subtotal        decimal.Decimal   `gorm:"column:subtotal;type:numeric(18,2);not null;default:0"`
	Total           decimal.Decimal   `gorm:"column:total;type:numeric(18,2);not null;default:0"`
	Extra           extra.Data        `gorm:"column:extra;type:jsonb;serializer:json"`
	ExtraRows       extra.Rows        `gorm:"column:extra_rows;type:jsonb;serializer:json"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`

	Items    []OrderItem    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payments []OrderPayment `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Notes    []OrderNote    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	loadedStatus enums.OrderStatus
	amountPaid   *decimal.Decimal
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

func (o *Order) AfterFind(*gorm.DB) error {
	o.loadedStatus = o.Status
	return nil
}

// LoadedStatus is the status last read from or written to storage. It is
// empty for an order that was never persisted.
func (o *Order) LoadedStatus() enums.OrderStatus {
	return o.loadedStatus
}

// MarkStatusPersisted records the current status as stored.
func (o *Order) MarkStatusPersisted() {
	o.loadedStatus = o.Status
}

// CachedAmountPaid returns the memoized paid amount.
func (o *Order) CachedAmountPaid() (decimal.Decimal, bool) {
	if o.amountPaid == nil {
		return decimal.Zero, false
	}
	return *o.amountPaid, true
}

func (o *Order) SetAmountPaid(amount decimal.Decimal) {
	o.amountPaid = &amount
}

// InvalidateAmountPaid clears the memoized paid amount.
func (o *Order) InvalidateAmountPaid() {
	o.amountPaid = nil
}

// OrderItem is a frozen copy of a basket line.
type OrderItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductType string          `gorm:"column:product_type;type:varchar(64);not null"`
	ProductID   string          `gorm:"column:product_id;type:varchar(64);not null"`
	ProductData extra.Data      `gorm:"column:product_data;type:jsonb;serializer:json"`
	Quantity    int             `gorm:"column:quantity;not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(18,2);not null"`
	Subtotal    decimal.Decimal `gorm:"column:subtotal;type:numeric(18,2);not null"`
	Total       decimal.Decimal `gorm:"column:total;type:numeric(18,2);not null"`
	Extra       extra.Data      `gorm:"column:extra;type:jsonb;serializer:json"`
	ExtraRows   extra.Rows      `gorm:"column:extra_rows;type:jsonb;serializer:json"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (OrderItem) TableName() string { return "order_items" }

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// Name returns the snapshotted product name.
func (i OrderItem) Name() string {
	name, _ := i.ProductData["name"].(string)
	return name
}

// Code returns the snapshotted product code.
func (i OrderItem) Code() string {
	code, _ := i.ProductData["code"].(string)
	return code
}

// OrderPayment is an append-only payment record.
type OrderPayment struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID       `gorm:"column:order_id;type:uuid;not null;uniqueIndex:idx_order_payments_order_txn"`
	Amount        decimal.Decimal `gorm:"column:amount;type:numeric(18,2);not null"`
	TransactionID string          `gorm:"column:transaction_id;type:varchar(128);not null;uniqueIndex:idx_order_payments_order_txn"`
	PaymentMethod string          `gorm:"column:payment_method;type:varchar(128);not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (OrderPayment) TableName() string { return "order_payments" }

func (p *OrderPayment) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// OrderNote is an append-only staff or customer facing note.
type OrderNote struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	Message   string    `gorm:"column:message;not null"`
	Public    bool      `gorm:"column:public;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (OrderNote) TableName() string { return "order_notes" }

func (n *OrderNote) BeforeCreate(*gorm.DB) error {
	ensureID(&n.ID)
	return nil
}
