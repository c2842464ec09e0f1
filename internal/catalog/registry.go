package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Source provides purchasable products of one product type.
type Source interface {
	ProductType() string
	Get(ctx context.Context, productID string) (models.Purchasable, error)
}

// Deleter is implemented by sources that support removing products.
type Deleter interface {
	Delete(ctx context.Context, productID string) error
}

// Registry maps product types to their sources.
type Registry struct {
	sources map[string]Source
}

// NewRegistry validates the sources eagerly and reports every problem at once.
func NewRegistry(sources ...Source) (*Registry, error) {
	var err error
	byType := make(map[string]Source, len(sources))
	for i, src := range sources {
		if src == nil {
			err = multierr.Append(err, fmt.Errorf("product source %d is nil", i))
			continue
		}
		productType := strings.TrimSpace(src.ProductType())
		if productType == "" {
			err = multierr.Append(err, fmt.Errorf("product source %d (%T) has no product type", i, src))
			continue
		}
		if _, ok := byType[productType]; ok {
			err = multierr.Append(err, fmt.Errorf("product type %q registered twice", productType))
			continue
		}
		byType[productType] = src
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConfiguration, err, "invalid product sources")
	}
	return &Registry{sources: byType}, nil
}

// Types lists registered product types sorted by name.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.sources))
	for t := range r.sources {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func (r *Registry) source(productType string) (Source, error) {
	src, ok := r.sources[productType]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown product type %q", productType))
	}
	return src, nil
}

// Resolve loads the product behind a basket line.
func (r *Registry) Resolve(ctx context.Context, productType, productID string) (models.Purchasable, error) {
	src, err := r.source(productType)
	if err != nil {
		return nil, err
	}
	product, err := src.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	return product, nil
}
