package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is the catalog's built-in product source.
type Product struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name      string          `gorm:"column:name;not null"`
	Code      string          `gorm:"column:code;type:varchar(128);not null;uniqueIndex"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(18,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

func (p *Product) ProductName() string { return p.Name }

func (p *Product) ProductCode() string { return p.Code }

func (p *Product) UnitPrice(context.Context) (decimal.Decimal, error) {
	return p.Price, nil
}
