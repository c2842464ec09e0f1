package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/extra"
)

// Basket holds the items a shopper intends to buy. An anonymous basket has no
// owner and is reached through the session binding.
type Basket struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID   *uuid.UUID `gorm:"column:owner_id;type:uuid;index"`
	Extra     extra.Data `gorm:"column:extra;type:jsonb;serializer:json"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`

	// Items caches the loaded lines; nil means not loaded.
	Items []BasketItem `gorm:"-"`
	// Pricing is nil until the basket has been priced.
	Pricing *Pricing `gorm:"-"`
}

func (Basket) TableName() string { return "baskets" }

func (b *Basket) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}

// PricingState returns the pricing, allocating it on first use.
func (b *Basket) PricingState() *Pricing {
	if b.Pricing == nil {
		b.Pricing = NewPricing()
	}
	return b.Pricing
}

// IsPriced reports whether a pricing pass has completed.
func (b *Basket) IsPriced() bool {
	return b.Pricing != nil
}

// InvalidateItems drops the item cache so the next read hits storage.
func (b *Basket) InvalidateItems() {
	b.Items = nil
}

// Subtotal returns zero when unpriced.
func (b *Basket) Subtotal() decimal.Decimal {
	if b.Pricing == nil {
		return decimal.Zero
	}
	return b.Pricing.Subtotal
}

// Total returns zero when unpriced.
func (b *Basket) Total() decimal.Decimal {
	if b.Pricing == nil {
		return decimal.Zero
	}
	return b.Pricing.Total
}

// BasketItem is one line of a basket, unique by ref within its basket.
type BasketItem struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	BasketID    uuid.UUID  `gorm:"column:basket_id;type:uuid;not null;uniqueIndex:idx_basket_items_basket_ref"`
	Ref         string     `gorm:"column:ref;type:varchar(128);not null;uniqueIndex:idx_basket_items_basket_ref"`
	ProductType string     `gorm:"column:product_type;type:varchar(64);not null;index:idx_basket_items_product"`
	ProductID   string     `gorm:"column:product_id;type:varchar(64);not null;index:idx_basket_items_product"`
	Quantity    int        `gorm:"column:quantity;not null;default:1"`
	Extra       extra.Data `gorm:"column:extra;type:jsonb;serializer:json"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`

	// Product is resolved from the catalog at pricing time.
	Product Purchasable `gorm:"-"`
	// Pricing is nil until the owning basket has been priced.
	Pricing *ItemPricing `gorm:"-"`
}

func (BasketItem) TableName() string { return "basket_items" }

func (i *BasketItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// PricingState returns the line pricing, allocating it on first use.
func (i *BasketItem) PricingState() *Pricing {
	if i.Pricing == nil {
		i.Pricing = &ItemPricing{UnitPrice: decimal.Zero, Pricing: *NewPricing()}
	}
	return &i.Pricing.Pricing
}

// UnitPrice returns zero when unpriced.
func (i *BasketItem) UnitPrice() decimal.Decimal {
	if i.Pricing == nil {
		return decimal.Zero
	}
	return i.Pricing.UnitPrice
}
