package basket

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/identity"
	"github.com/angelmondragon/storefront-backend/internal/modifiers"
	"github.com/angelmondragon/storefront-backend/internal/modifiers/builtin"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/extra"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

type harness struct {
	svc      Service
	conn     *gorm.DB
	sessions *RedisSessionStore
	client   *redis.Client
	redis    *miniredis.Miniredis
	products *catalog.Repository
}

func newHarness(t *testing.T, mods ...modifiers.Modifier) *harness {
	t.Helper()
	conn := dbtest.Open(t, &models.Product{}, &models.Basket{}, &models.BasketItem{})

	srv := miniredis.RunT(t)
	client := redis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: srv.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	sessions := NewRedisSessionStore(client, time.Hour)

	products := catalog.NewRepository(conn)
	registry, err := catalog.NewRegistry(catalog.NewProductSource(products))
	require.NoError(t, err)

	pool, err := modifiers.NewPool(mods...)
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Tx:         db.Wrap(conn),
		Repository: NewRepository(conn),
		Sessions:   sessions,
		Catalog:    registry,
		Pricer:     modifiers.NewPipeline(pool, nil, nil),
	})
	require.NoError(t, err)
	return &harness{svc: svc, conn: conn, sessions: sessions, client: client, redis: srv, products: products}
}

func (h *harness) product(t *testing.T, code, price string) *models.Product {
	t.Helper()
	p := &models.Product{Name: code, Code: code, Price: decimal.RequireFromString(price)}
	require.NoError(t, h.products.Create(context.Background(), p))
	return p
}

func addInput(p *models.Product, qty int) AddInput {
	return AddInput{ProductType: catalog.DefaultProductType, ProductID: p.ID.String(), Quantity: qty}
}

func TestResolveAnonymousCreatesAndRebinds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := identity.Identity{SessionKey: "sess-1"}

	first, created, err := h.svc.Resolve(ctx, id)
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := h.svc.Resolve(ctx, id)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	other, created, err := h.svc.Resolve(ctx, identity.Identity{SessionKey: "sess-2"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestResolveAuthenticatedMergesSessionBasket(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mug := h.product(t, "MUG", "10")
	hat := h.product(t, "CAP", "5")

	anon, _, err := h.svc.Resolve(ctx, identity.Identity{SessionKey: "sess"})
	require.NoError(t, err)
	_, err = h.svc.Add(ctx, anon, addInput(mug, 2))
	require.NoError(t, err)
	_, err = h.svc.Add(ctx, anon, addInput(hat, 1))
	require.NoError(t, err)

	userID := uuid.New()
	owned := &models.Basket{OwnerID: &userID}
	require.NoError(t, h.conn.Create(owned).Error)
	_, err = h.svc.Add(ctx, owned, addInput(mug, 3))
	require.NoError(t, err)

	basket, created, err := h.svc.Resolve(ctx, identity.Identity{SessionKey: "sess", UserID: &userID})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, owned.ID, basket.ID)

	items, err := h.svc.Items(ctx, basket)
	require.NoError(t, err)
	require.Len(t, items, 2)
	quantities := map[string]int{}
	for _, item := range items {
		quantities[item.Ref] = item.Quantity
	}
	assert.Equal(t, 5, quantities[ProductRef(catalog.DefaultProductType, mug.ID.String())])
	assert.Equal(t, 1, quantities[ProductRef(catalog.DefaultProductType, hat.ID.String())])

	var remaining int64
	require.NoError(t, h.conn.Model(&models.Basket{}).Where("id = ?", anon.ID).Count(&remaining).Error)
	assert.Zero(t, remaining, "session basket is deleted after merge")
	assert.False(t, h.redis.Exists(h.client.SessionBasketKey("sess")), "session binding is dropped")
}

func TestResolveAuthenticatedCreatesAndConsolidates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := uuid.New()

	basket, created, err := h.svc.Resolve(ctx, identity.Identity{UserID: &userID})
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, basket.OwnerID)
	assert.Equal(t, userID, *basket.OwnerID)

	later := &models.Basket{OwnerID: &userID, CreatedAt: basket.CreatedAt.Add(time.Minute)}
	require.NoError(t, h.conn.Create(later).Error)
	mug := h.product(t, "MUG", "10")
	_, err = h.svc.Add(ctx, later, addInput(mug, 1))
	require.NoError(t, err)

	resolved, created, err := h.svc.Resolve(ctx, identity.Identity{UserID: &userID})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, basket.ID, resolved.ID, "earliest basket wins")
	count, err := h.svc.Count(ctx, resolved)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestResolveIgnoresOwnedSessionBasket(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := uuid.New()
	owned := &models.Basket{OwnerID: &userID}
	require.NoError(t, h.conn.Create(owned).Error)
	require.NoError(t, h.sessions.Bind(ctx, "sess", owned.ID))

	basket, created, err := h.svc.Resolve(ctx, identity.Identity{SessionKey: "sess"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, owned.ID, basket.ID)
}

func TestAddConsolidatesByRef(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mug := h.product(t, "MUG", "10")
	basket, _, err := h.svc.Resolve(ctx, identity.Identity{SessionKey: "s"})
	require.NoError(t, err)

	_, err = h.svc.Add(ctx, basket, AddInput{ProductType: catalog.DefaultProductType, ProductID: mug.ID.String(), Extra: extra.Data{"engraving": "A"}})
	require.NoError(t, err)
	_, err = h.svc.Items(ctx, basket)
	require.NoError(t, err)

	item, err := h.svc.Add(ctx, basket, AddInput{ProductType: catalog.DefaultProductType, ProductID: mug.ID.String(), Quantity: 2, Extra: extra.Data{"engraving": "B"}})
	require.NoError(t, err)
	assert.Nil(t, basket.Items, "add invalidates the item cache")
	assert.Equal(t, 3, item.Quantity)
	assert.Equal(t, "B", item.Extra["engraving"])

	count, err := h.svc.Count(ctx, basket)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	quantity, err := h.svc.Quantity(ctx, basket)
	require.NoError(t, err)
	assert.Equal(t, 3, quantity)
}

func TestAddValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mug := h.product(t, "MUG", "10")
	basket, _, err := h.svc.Resolve(ctx, identity.Identity{})
	require.NoError(t, err)

	_, err = h.svc.Add(ctx, basket, addInput(mug, -1))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = h.svc.Add(ctx, basket, AddInput{ProductType: catalog.DefaultProductType, ProductID: uuid.NewString()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = h.svc.Add(ctx, basket, AddInput{ProductType: catalog.DefaultProductType, ProductID: mug.ID.String(), Extra: extra.Data{"rows": 1}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRemoveUpdateItemAndClear(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mug := h.product(t, "MUG", "10")
	hat := h.product(t, "CAP", "5")
	basket, _, err := h.svc.Resolve(ctx, identity.Identity{})
	require.NoError(t, err)
	mugItem, err := h.svc.Add(ctx, basket, addInput(mug, 1))
	require.NoError(t, err)
	_, err = h.svc.Add(ctx, basket, addInput(hat, 1))
	require.NoError(t, err)

	qty := 4
	updated, err := h.svc.UpdateItem(ctx, basket, mugItem.Ref, UpdateItemInput{Quantity: &qty})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Quantity)

	_, err = h.svc.UpdateItem(ctx, basket, "missing", UpdateItemInput{Quantity: &qty})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	require.NoError(t, h.svc.Remove(ctx, basket, "missing"), "removing a missing ref is a no-op")
	require.NoError(t, h.svc.Remove(ctx, basket, mugItem.Ref))
	count, err := h.svc.Count(ctx, basket)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = h.svc.Items(ctx, basket)
	require.NoError(t, err)
	require.NoError(t, h.svc.Clear(ctx, basket))
	assert.Nil(t, basket.Items)
	count, err = h.svc.Count(ctx, basket)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMergeAddsQuantities(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mug := h.product(t, "MUG", "10")
	hat := h.product(t, "CAP", "5")
	target, _, err := h.svc.Resolve(ctx, identity.Identity{})
	require.NoError(t, err)
	other, _, err := h.svc.Resolve(ctx, identity.Identity{})
	require.NoError(t, err)

	_, err = h.svc.Add(ctx, target, addInput(mug, 2))
	require.NoError(t, err)
	_, err = h.svc.Add(ctx, other, addInput(mug, 3))
	require.NoError(t, err)
	_, err = h.svc.Add(ctx, other, addInput(hat, 1))
	require.NoError(t, err)

	require.NoError(t, h.svc.Merge(ctx, target, other))
	quantity, err := h.svc.Quantity(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, 6, quantity)
	count, err := h.svc.Count(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = h.svc.Get(ctx, other.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestUpdatePricesBasketAndStaysDeterministic(t *testing.T) {
	h := newHarness(t, builtin.NewDiscount(), builtin.NewShippingCost(decimal.NewFromInt(30)))
	ctx := context.Background()
	mug := h.product(t, "MUG", "10")
	basket, _, err := h.svc.Resolve(ctx, identity.Identity{})
	require.NoError(t, err)
	_, err = h.svc.Add(ctx, basket, addInput(mug, 5))
	require.NoError(t, err)

	require.NoError(t, h.svc.Update(ctx, basket))
	require.True(t, basket.IsPriced())
	assert.True(t, basket.Subtotal().Equal(decimal.NewFromInt(50)))
	assert.True(t, basket.Total().Equal(decimal.NewFromInt(75)))
	first := basket.Total()

	require.NoError(t, h.svc.Update(ctx, basket))
	assert.True(t, basket.Total().Equal(first))
	assert.Len(t, basket.Pricing.ExtraRows, 2)
	assert.Equal(t, "MUG", basket.Items[0].Product.ProductName())
}

func TestSetExtraRejectsReservedKey(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	basket, _, err := h.svc.Resolve(ctx, identity.Identity{})
	require.NoError(t, err)

	err = h.svc.SetExtra(ctx, basket, extra.Data{"rows": []any{}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	require.NoError(t, h.svc.SetExtra(ctx, basket, extra.Data{"email": "a@example.com"}))
	stored, err := h.svc.Get(ctx, basket.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", stored.Extra["email"])
}

func TestDeleteAndProductReferenced(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mug := h.product(t, "MUG", "10")
	basket, _, err := h.svc.Resolve(ctx, identity.Identity{})
	require.NoError(t, err)
	_, err = h.svc.Add(ctx, basket, addInput(mug, 1))
	require.NoError(t, err)

	referenced, err := h.svc.ProductReferenced(ctx, catalog.DefaultProductType, mug.ID.String())
	require.NoError(t, err)
	assert.True(t, referenced)

	require.NoError(t, h.svc.Delete(ctx, basket))
	referenced, err = h.svc.ProductReferenced(ctx, catalog.DefaultProductType, mug.ID.String())
	require.NoError(t, err)
	assert.False(t, referenced)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatal("expected missing dependency error")
	}
}
