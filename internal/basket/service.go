package basket

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/identity"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/extra"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Service is the basket engine.
type Service interface {
	Resolve(ctx context.Context, id identity.Identity) (*models.Basket, bool, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Basket, error)
	Add(ctx context.Context, basket *models.Basket, input AddInput) (*models.BasketItem, error)
	Remove(ctx context.Context, basket *models.Basket, ref string) error
	UpdateItem(ctx context.Context, basket *models.Basket, ref string, input UpdateItemInput) (*models.BasketItem, error)
	Clear(ctx context.Context, basket *models.Basket) error
	Merge(ctx context.Context, basket, other *models.Basket) error
	Update(ctx context.Context, basket *models.Basket) error
	Count(ctx context.Context, basket *models.Basket) (int, error)
	Quantity(ctx context.Context, basket *models.Basket) (int, error)
	Items(ctx context.Context, basket *models.Basket) ([]models.BasketItem, error)
	SetExtra(ctx context.Context, basket *models.Basket, data extra.Data) error
	Delete(ctx context.Context, basket *models.Basket) error
	ProductReferenced(ctx context.Context, productType, productID string) (bool, error)
}

// AddInput describes a product added to the basket.
type AddInput struct {
	ProductType string
	ProductID   string
	Quantity    int
	Ref         string
	Extra       extra.Data
}

// UpdateItemInput changes an existing line. Nil fields are left untouched.
type UpdateItemInput struct {
	Quantity *int
	Extra    extra.Data
}

type ServiceParams struct {
	Tx             txRunner
	Repository     Repository
	Sessions       SessionStore
	Catalog        productResolver
	Pricer         pricer
	ExtraValidator extra.Validator
	Logger         *logger.Logger
}

type service struct {
	tx        txRunner
	repo      Repository
	sessions  SessionStore
	catalog   productResolver
	pricer    pricer
	validator extra.Validator
	logg      *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("basket repository required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("product catalog required")
	}
	if params.Pricer == nil {
		return nil, fmt.Errorf("pricing pipeline required")
	}
	validator := params.ExtraValidator
	if validator == nil {
		validator = extra.DefaultValidator
	}
	return &service{
		tx:        params.Tx,
		repo:      params.Repository,
		sessions:  params.Sessions,
		catalog:   params.Catalog,
		pricer:    params.Pricer,
		validator: validator,
		logg:      params.Logger,
	}, nil
}

func (s *service) Resolve(ctx context.Context, id identity.Identity) (*models.Basket, bool, error) {
	sessionBasket, bound, err := s.sessionBasket(ctx, id.SessionKey)
	if err != nil {
		return nil, false, err
	}

	if !id.IsAuthenticated() {
		if sessionBasket != nil {
			return sessionBasket, false, nil
		}
		basket := &models.Basket{}
		if err := s.repo.CreateBasket(ctx, basket); err != nil {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create basket")
		}
		if id.SessionKey != "" {
			if err := s.sessions.Bind(ctx, id.SessionKey, basket.ID); err != nil {
				return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bind session basket")
			}
		}
		s.logInfo(ctx, basket, "basket created")
		return basket, true, nil
	}

	ownerID := *id.UserID
	var (
		basket  *models.Basket
		created bool
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		baskets, err := repo.ListByOwner(ctx, ownerID, true)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list owner baskets")
		}
		if len(baskets) == 0 {
			basket = &models.Basket{OwnerID: &ownerID}
			if err := repo.CreateBasket(ctx, basket); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create basket")
			}
			created = true
		} else {
			basket = &baskets[0]
			for i := 1; i < len(baskets); i++ {
				if err := mergeInto(ctx, repo, basket, &baskets[i]); err != nil {
					return err
				}
			}
		}
		if sessionBasket != nil {
			if err := mergeInto(ctx, repo, basket, sessionBasket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if bound {
		if err := s.sessions.Unbind(ctx, id.SessionKey); err != nil {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "drop session basket")
		}
	}
	if created {
		s.logInfo(ctx, basket, "basket created")
	}
	return basket, created, nil
}

// sessionBasket returns the anonymous basket bound to the session. bound
// reports whether the session held any binding at all.
func (s *service) sessionBasket(ctx context.Context, sessionKey string) (*models.Basket, bool, error) {
	if sessionKey == "" {
		return nil, false, nil
	}
	basketID, bound, err := s.sessions.BasketID(ctx, sessionKey)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read session basket")
	}
	if !bound {
		return nil, false, nil
	}
	basket, err := s.repo.FindBasket(ctx, basketID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, true, nil
		}
		return nil, true, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session basket")
	}
	if basket.OwnerID != nil {
		return nil, true, nil
	}
	return basket, true, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Basket, error) {
	basket, err := s.repo.FindBasket(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "basket not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load basket")
	}
	return basket, nil
}

func (s *service) Add(ctx context.Context, basket *models.Basket, input AddInput) (*models.BasketItem, error) {
	productType := strings.TrimSpace(input.ProductType)
	productID := strings.TrimSpace(input.ProductID)
	if productType == "" || productID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product type and id are required")
	}
	quantity := input.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if len(input.Extra) > 0 {
		if err := s.validateExtra(input.Extra); err != nil {
			return nil, err
		}
	}
	if _, err := s.catalog.Resolve(ctx, productType, productID); err != nil {
		return nil, err
	}

	ref := strings.TrimSpace(input.Ref)
	if ref == "" {
		ref = ProductRef(productType, productID)
	}

	defer basket.InvalidateItems()

	existing, err := s.repo.FindItem(ctx, basket.ID, ref)
	switch {
	case err == nil:
		existing.Quantity += quantity
		if len(input.Extra) > 0 {
			existing.Extra = input.Extra.Clone()
		}
		if err := s.repo.SaveItem(ctx, existing); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update basket item")
		}
		return existing, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load basket item")
	}

	item := &models.BasketItem{
		BasketID:    basket.ID,
		Ref:         ref,
		ProductType: productType,
		ProductID:   productID,
		Quantity:    quantity,
		Extra:       input.Extra.Clone(),
	}
	if err := s.repo.CreateItem(ctx, item); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "basket item already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create basket item")
	}
	return item, nil
}

func (s *service) Remove(ctx context.Context, basket *models.Basket, ref string) error {
	removed, err := s.repo.DeleteItem(ctx, basket.ID, ref)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove basket item")
	}
	if removed {
		basket.InvalidateItems()
	}
	return nil
}

func (s *service) UpdateItem(ctx context.Context, basket *models.Basket, ref string, input UpdateItemInput) (*models.BasketItem, error) {
	if input.Quantity != nil && *input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.Extra != nil {
		if err := s.validateExtra(input.Extra); err != nil {
			return nil, err
		}
	}
	item, err := s.repo.FindItem(ctx, basket.ID, ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "basket item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load basket item")
	}
	if input.Quantity != nil {
		item.Quantity = *input.Quantity
	}
	if input.Extra != nil {
		item.Extra = input.Extra.Clone()
	}
	if err := s.repo.SaveItem(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update basket item")
	}
	basket.InvalidateItems()
	return item, nil
}

func (s *service) Clear(ctx context.Context, basket *models.Basket) error {
	if err := s.repo.ClearItems(ctx, basket.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear basket")
	}
	basket.InvalidateItems()
	return nil
}

func (s *service) Merge(ctx context.Context, basket, other *models.Basket) error {
	if other == nil || other.ID == basket.ID {
		return nil
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return mergeInto(ctx, s.repo.WithTx(tx), basket, other)
	})
	if err != nil {
		return err
	}
	if s.logg != nil {
		logCtx := s.logg.WithBasketID(ctx, basket.ID.String())
		logCtx = s.logg.WithField(logCtx, "merged_basket_id", other.ID.String())
		s.logg.Info(logCtx, "basket merged")
	}
	return nil
}

// mergeInto folds other's lines into basket and deletes other. Matching refs
// add quantities; the rest are reparented.
func mergeInto(ctx context.Context, repo Repository, basket, other *models.Basket) error {
	items, err := repo.ListItems(ctx, other.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load merged basket items")
	}
	for i := range items {
		item := &items[i]
		existing, err := repo.FindItem(ctx, basket.ID, item.Ref)
		switch {
		case err == nil:
			existing.Quantity += item.Quantity
			if err := repo.SaveItem(ctx, existing); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge basket item")
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := repo.MoveItem(ctx, item.ID, basket.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "move basket item")
			}
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load basket item")
		}
	}
	if err := repo.DeleteBasket(ctx, other.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete merged basket")
	}
	basket.InvalidateItems()
	return nil
}

func (s *service) Update(ctx context.Context, basket *models.Basket) error {
	items, err := s.Items(ctx, basket)
	if err != nil {
		return err
	}
	for i := range items {
		if items[i].Product != nil {
			continue
		}
		product, err := s.catalog.Resolve(ctx, items[i].ProductType, items[i].ProductID)
		if err != nil {
			return err
		}
		items[i].Product = product
	}
	basket.Items = items
	return s.pricer.Run(ctx, basket)
}

func (s *service) Items(ctx context.Context, basket *models.Basket) ([]models.BasketItem, error) {
	if basket.Items != nil {
		return basket.Items, nil
	}
	items, err := s.repo.ListItems(ctx, basket.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load basket items")
	}
	if items == nil {
		items = []models.BasketItem{}
	}
	basket.Items = items
	return items, nil
}

func (s *service) Count(ctx context.Context, basket *models.Basket) (int, error) {
	if basket.Items != nil {
		return len(basket.Items), nil
	}
	count, err := s.repo.CountItems(ctx, basket.ID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count basket items")
	}
	return count, nil
}

func (s *service) Quantity(ctx context.Context, basket *models.Basket) (int, error) {
	if basket.Items != nil {
		total := 0
		for _, item := range basket.Items {
			total += item.Quantity
		}
		return total, nil
	}
	total, err := s.repo.SumQuantity(ctx, basket.ID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum basket quantity")
	}
	return total, nil
}

func (s *service) SetExtra(ctx context.Context, basket *models.Basket, data extra.Data) error {
	if data == nil {
		data = extra.Data{}
	}
	if err := s.validateExtra(data); err != nil {
		return err
	}
	basket.Extra = data.Clone()
	if err := s.repo.UpdateExtra(ctx, basket); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save basket extra")
	}
	return nil
}

func (s *service) Delete(ctx context.Context, basket *models.Basket) error {
	if err := s.repo.DeleteBasket(ctx, basket.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete basket")
	}
	basket.InvalidateItems()
	return nil
}

func (s *service) ProductReferenced(ctx context.Context, productType, productID string) (bool, error) {
	referenced, err := s.repo.ProductReferenced(ctx, productType, productID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check product references")
	}
	return referenced, nil
}

func (s *service) validateExtra(data extra.Data) error {
	err := s.validator(data)
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
}

func (s *service) logInfo(ctx context.Context, basket *models.Basket, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithBasketID(ctx, basket.ID.String()), msg)
}
