package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Repository defines persistence operations for the order tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	UpdateOrder(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByRef(ctx context.Context, ref string) (*models.Order, error)
	FindByToken(ctx context.Context, token string) (*models.Order, error)
	LastRefForYear(ctx context.Context, year int) (string, bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, size int, cursor *pagination.Cursor) ([]models.Order, error)
	LastByUser(ctx context.Context, userID uuid.UUID) (*models.Order, error)
	CreateItems(ctx context.Context, items []models.OrderItem) error
	ListItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	CreatePayment(ctx context.Context, payment *models.OrderPayment) error
	ListPayments(ctx context.Context, orderID uuid.UUID) ([]models.OrderPayment, error)
	DeletePayment(ctx context.Context, id uuid.UUID) error
	CreateNote(ctx context.Context, note *models.OrderNote) error
	ListNotes(ctx context.Context, orderID uuid.UUID, publicOnly bool) ([]models.OrderNote, error)
}

// StatusNotifier receives persisted status changes. tx is the transaction
// that wrote the change.
type StatusNotifier interface {
	StatusChanged(ctx context.Context, tx *gorm.DB, change StatusChange) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type basketPricer interface {
	Update(ctx context.Context, basket *models.Basket) error
}

type methodLookup interface {
	Lookup(identifier string) (payments.PaymentMethod, bool)
}
