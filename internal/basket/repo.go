package basket

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository returns the gorm-backed basket repository.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

func (r *repository) CreateBasket(ctx context.Context, basket *models.Basket) error {
	return r.db.WithContext(ctx).Create(basket).Error
}

func (r *repository) FindBasket(ctx context.Context, id uuid.UUID) (*models.Basket, error) {
	var basket models.Basket
	if err := r.db.WithContext(ctx).First(&basket, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &basket, nil
}

// ListByOwner returns the owner's baskets oldest first, row locked when lock
// is set and the dialect supports it.
func (r *repository) ListByOwner(ctx context.Context, ownerID uuid.UUID, lock bool) ([]models.Basket, error) {
	query := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if lock {
		query = db.LockForUpdate(query)
	}
	var baskets []models.Basket
	err := query.Order("created_at ASC").Order("id ASC").Find(&baskets).Error
	return baskets, err
}

func (r *repository) UpdateExtra(ctx context.Context, basket *models.Basket) error {
	return r.db.WithContext(ctx).Model(basket).Select("extra", "updated_at").Updates(basket).Error
}

func (r *repository) DeleteBasket(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("basket_id = ?", id).Delete(&models.BasketItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Basket{}, "id = ?", id).Error
	})
}

func (r *repository) ListItems(ctx context.Context, basketID uuid.UUID) ([]models.BasketItem, error) {
	var items []models.BasketItem
	err := r.db.WithContext(ctx).
		Where("basket_id = ?", basketID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *repository) FindItem(ctx context.Context, basketID uuid.UUID, ref string) (*models.BasketItem, error) {
	var item models.BasketItem
	err := r.db.WithContext(ctx).Where("basket_id = ? AND ref = ?", basketID, ref).First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) CreateItem(ctx context.Context, item *models.BasketItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) SaveItem(ctx context.Context, item *models.BasketItem) error {
	return r.db.WithContext(ctx).Model(item).Select("quantity", "extra", "updated_at").Updates(item).Error
}

func (r *repository) DeleteItem(ctx context.Context, basketID uuid.UUID, ref string) (bool, error) {
	res := r.db.WithContext(ctx).Where("basket_id = ? AND ref = ?", basketID, ref).Delete(&models.BasketItem{})
	return res.RowsAffected > 0, res.Error
}

func (r *repository) ClearItems(ctx context.Context, basketID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("basket_id = ?", basketID).Delete(&models.BasketItem{}).Error
}

func (r *repository) MoveItem(ctx context.Context, itemID, basketID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.BasketItem{}).
		Where("id = ?", itemID).
		Update("basket_id", basketID).Error
}

func (r *repository) CountItems(ctx context.Context, basketID uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.BasketItem{}).Where("basket_id = ?", basketID).Count(&count).Error
	return int(count), err
}

func (r *repository) SumQuantity(ctx context.Context, basketID uuid.UUID) (int, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.BasketItem{}).
		Where("basket_id = ?", basketID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	return int(total), err
}

func (r *repository) ProductReferenced(ctx context.Context, productType, productID string) (bool, error) {
	var item models.BasketItem
	err := r.db.WithContext(ctx).
		Select("id").
		Where("product_type = ? AND product_id = ?", productType, productID).
		Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *repository) DeleteAnonymousIdle(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uuid.UUID
		fresh := tx.Model(&models.BasketItem{}).
			Select("1").
			Where("basket_items.basket_id = baskets.id AND basket_items.updated_at >= ?", cutoff)
		if err := tx.Model(&models.Basket{}).
			Where("owner_id IS NULL AND updated_at < ?", cutoff).
			Where("NOT EXISTS (?)", fresh).
			Order("updated_at ASC").
			Limit(limit).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("basket_id IN ?", ids).Delete(&models.BasketItem{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&models.Basket{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}
