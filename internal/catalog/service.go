package catalog

import (
	"context"
	"fmt"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type referenceChecker interface {
	ProductReferenced(ctx context.Context, productType, productID string) (bool, error)
}

// Service guards product removal against live basket references.
type Service interface {
	EnsureDeletable(ctx context.Context, productType, productID string) error
	Delete(ctx context.Context, productType, productID string) error
}

type service struct {
	registry *Registry
	refs     referenceChecker
	logg     *logger.Logger
}

func NewService(registry *Registry, refs referenceChecker, logg *logger.Logger) (Service, error) {
	if registry == nil {
		return nil, fmt.Errorf("product registry required")
	}
	if refs == nil {
		return nil, fmt.Errorf("reference checker required")
	}
	return &service{registry: registry, refs: refs, logg: logg}, nil
}

// EnsureDeletable fails with CodeConflict while any basket still holds the product.
func (s *service) EnsureDeletable(ctx context.Context, productType, productID string) error {
	referenced, err := s.refs.ProductReferenced(ctx, productType, productID)
	if err != nil {
		return err
	}
	if referenced {
		return pkgerrors.New(pkgerrors.CodeConflict, "product is referenced by a basket item and cannot be deleted")
	}
	return nil
}

func (s *service) Delete(ctx context.Context, productType, productID string) error {
	src, err := s.registry.source(productType)
	if err != nil {
		return err
	}
	deleter, ok := src.(Deleter)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("products of type %q cannot be deleted", productType))
	}
	if err := s.EnsureDeletable(ctx, productType, productID); err != nil {
		return err
	}
	if err := deleter.Delete(ctx, productID); err != nil {
		return err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"product_type": productType, "product_id": productID})
		s.logg.Info(logCtx, "product deleted")
	}
	return nil
}
