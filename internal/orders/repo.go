package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("Items", "Payments", "Notes").Create(order).Error
}

// UpdateOrder writes the header columns only.
func (r *repository) UpdateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).
		Model(order).
		Select("user_id", "status", "email", "shipping_address", "billing_address", "subtotal", "total", "extra", "extra_rows", "updated_at").
		Updates(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *repository) FindByRef(ctx context.Context, ref string) (*models.Order, error) {
	return r.findOne(ctx, "ref = ?", ref)
}

func (r *repository) FindByToken(ctx context.Context, token string) (*models.Order, error) {
	return r.findOne(ctx, "token = ?", token)
}

func (r *repository) findOne(ctx context.Context, query string, arg any) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where(query, arg).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// LastRefForYear returns the ref of the most recently created order of year.
func (r *repository) LastRefForYear(ctx context.Context, year int) (string, bool, error) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	var order models.Order
	err := r.db.WithContext(ctx).
		Select("ref").
		Where("created_at >= ? AND created_at < ?", start, start.AddDate(1, 0, 0)).
		Where("ref <> ''").
		Order("created_at DESC").
		Take(&order).Error
	if err == gorm.ErrRecordNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return order.Ref, true, nil
}

// ListByUser returns up to size+1 orders after cursor, newest first.
func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, size int, cursor *pagination.Cursor) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Scopes(pagination.Keyset(cursor, size)).
		Where("user_id = ?", userID).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) LastByUser(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) CreateItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) ListItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.OrderPayment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) ListPayments(ctx context.Context, orderID uuid.UUID) ([]models.OrderPayment, error) {
	var payments []models.OrderPayment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repository) DeletePayment(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.OrderPayment{}, "id = ?", id).Error
}

func (r *repository) CreateNote(ctx context.Context, note *models.OrderNote) error {
	return r.db.WithContext(ctx).Create(note).Error
}

func (r *repository) ListNotes(ctx context.Context, orderID uuid.UUID, publicOnly bool) ([]models.OrderNote, error) {
	query := r.db.WithContext(ctx).Where("order_id = ?", orderID)
	if publicOnly {
		query = query.Where("public = ?", true)
	}
	var notes []models.OrderNote
	if err := query.Order("created_at ASC").Find(&notes).Error; err != nil {
		return nil, err
	}
	return notes, nil
}
