package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type namedSource string

func (s namedSource) ProductType() string { return string(s) }
func (s namedSource) Get(context.Context, string) (models.Purchasable, error) {
	return nil, errors.New("not implemented")
}

type stubRefs struct {
	referenced bool
	err        error
	calls      int
}

func (s *stubRefs) ProductReferenced(context.Context, string, string) (bool, error) {
	s.calls++
	return s.referenced, s.err
}

func newProductRegistry(t *testing.T) (*Registry, *Repository) {
	t.Helper()
	conn := dbtest.Open(t, &models.Product{})
	repo := NewRepository(conn)
	registry, err := NewRegistry(NewProductSource(repo))
	require.NoError(t, err)
	return registry, repo
}

func TestNewRegistryValidatesSources(t *testing.T) {
	_, err := NewRegistry(nil, namedSource(""), namedSource("gift"), namedSource("gift"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConfiguration))
	msg := errors.Unwrap(err).Error()
	assert.Contains(t, msg, "product source 0 is nil")
	assert.Contains(t, msg, "has no product type")
	assert.Contains(t, msg, `product type "gift" registered twice`)

	registry, err := NewRegistry(namedSource("gift"), namedSource("book"))
	require.NoError(t, err)
	assert.Equal(t, []string{"book", "gift"}, registry.Types())
}

func TestResolveProduct(t *testing.T) {
	registry, repo := newProductRegistry(t)
	ctx := context.Background()
	product := &models.Product{Name: "Mug", Code: "MUG-1", Price: decimal.RequireFromString("12.50")}
	require.NoError(t, repo.Create(ctx, product))

	found, err := registry.Resolve(ctx, DefaultProductType, product.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Mug", found.ProductName())
	price, err := found.UnitPrice(ctx)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("12.5")))

	_, err = registry.Resolve(ctx, DefaultProductType, uuid.NewString())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = registry.Resolve(ctx, DefaultProductType, "not-a-uuid")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = registry.Resolve(ctx, "ticket", product.ID.String())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDeleteGuardedByBasketReferences(t *testing.T) {
	registry, repo := newProductRegistry(t)
	ctx := context.Background()
	product := &models.Product{Name: "Mug", Code: "MUG-2", Price: decimal.NewFromInt(5)}
	require.NoError(t, repo.Create(ctx, product))

	refs := &stubRefs{referenced: true}
	svc, err := NewService(registry, refs, nil)
	require.NoError(t, err)

	err = svc.Delete(ctx, DefaultProductType, product.ID.String())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	_, err = repo.FindByID(ctx, product.ID)
	require.NoError(t, err, "referenced product must survive")

	refs.referenced = false
	require.NoError(t, svc.Delete(ctx, DefaultProductType, product.ID.String()))
	_, err = registry.Resolve(ctx, DefaultProductType, product.ID.String())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	err = svc.Delete(ctx, DefaultProductType, product.ID.String())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDeleteRequiresDeleter(t *testing.T) {
	registry, err := NewRegistry(namedSource("gift"))
	require.NoError(t, err)
	refs := &stubRefs{}
	svc, err := NewService(registry, refs, nil)
	require.NoError(t, err)

	err = svc.Delete(context.Background(), "gift", "1")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Zero(t, refs.calls)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(nil, &stubRefs{}, nil); err == nil {
		t.Fatal("expected registry error")
	}
	registry, _ := NewRegistry()
	if _, err := NewService(registry, nil, nil); err == nil {
		t.Fatal("expected reference checker error")
	}
}
