package basket

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository persists baskets and their lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateBasket(ctx context.Context, basket *models.Basket) error
	FindBasket(ctx context.Context, id uuid.UUID) (*models.Basket, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, lock bool) ([]models.Basket, error)
	UpdateExtra(ctx context.Context, basket *models.Basket) error
	DeleteBasket(ctx context.Context, id uuid.UUID) error

	ListItems(ctx context.Context, basketID uuid.UUID) ([]models.BasketItem, error)
	FindItem(ctx context.Context, basketID uuid.UUID, ref string) (*models.BasketItem, error)
	CreateItem(ctx context.Context, item *models.BasketItem) error
	SaveItem(ctx context.Context, item *models.BasketItem) error
	DeleteItem(ctx context.Context, basketID uuid.UUID, ref string) (bool, error)
	ClearItems(ctx context.Context, basketID uuid.UUID) error
	MoveItem(ctx context.Context, itemID, basketID uuid.UUID) error

	CountItems(ctx context.Context, basketID uuid.UUID) (int, error)
	SumQuantity(ctx context.Context, basketID uuid.UUID) (int, error)
	ProductReferenced(ctx context.Context, productType, productID string) (bool, error)

	// DeleteAnonymousIdle removes up to limit ownerless baskets whose basket
	// row and lines were all last touched before cutoff.
	DeleteAnonymousIdle(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// SessionStore binds anonymous session keys to basket ids.
type SessionStore interface {
	BasketID(ctx context.Context, sessionKey string) (uuid.UUID, bool, error)
	Bind(ctx context.Context, sessionKey string, basketID uuid.UUID) error
	Unbind(ctx context.Context, sessionKey string) error
}

type productResolver interface {
	Resolve(ctx context.Context, productType, productID string) (models.Purchasable, error)
}

type pricer interface {
	Run(ctx context.Context, basket *models.Basket) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
