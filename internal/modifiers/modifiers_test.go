package modifiers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

type stubProduct struct {
	price decimal.Decimal
	err   error
}

func (p stubProduct) ProductName() string { return "stub" }
func (p stubProduct) ProductCode() string { return "STUB" }
func (p stubProduct) UnitPrice(context.Context) (decimal.Decimal, error) {
	return p.price, p.err
}

type recorder struct {
	Base
	calls *[]string
}

func (r recorder) SetupBasket(context.Context, *models.Basket) error {
	*r.calls = append(*r.calls, r.ID+":setup_basket")
	return nil
}
func (r recorder) SetupItem(_ context.Context, item *models.BasketItem) error {
	*r.calls = append(*r.calls, r.ID+":setup_item:"+item.Ref)
	return nil
}
func (r recorder) ProcessItem(_ context.Context, item *models.BasketItem) error {
	*r.calls = append(*r.calls, r.ID+":process_item:"+item.Ref)
	return nil
}
func (r recorder) FinalizeItem(_ context.Context, item *models.BasketItem) error {
	*r.calls = append(*r.calls, r.ID+":finalize_item:"+item.Ref)
	return nil
}
func (r recorder) ProcessBasket(context.Context, *models.Basket) error {
	*r.calls = append(*r.calls, r.ID+":process_basket")
	return nil
}
func (r recorder) FinalizeBasket(context.Context, *models.Basket) error {
	*r.calls = append(*r.calls, r.ID+":finalize_basket")
	return nil
}

type itemCharge struct {
	Base
	amount decimal.Decimal
}

func (c itemCharge) ProcessItem(_ context.Context, item *models.BasketItem) error {
	c.AddExtraRow(item, "charge", c.amount)
	return nil
}

type failing struct {
	Base
}

func (failing) ProcessBasket(context.Context, *models.Basket) error {
	return errors.New("boom")
}

func newBasket(items ...models.BasketItem) *models.Basket {
	return &models.Basket{Items: items}
}

func item(ref string, price string, qty int) models.BasketItem {
	return models.BasketItem{Ref: ref, Quantity: qty, Product: stubProduct{price: decimal.RequireFromString(price)}}
}

func TestPipelineRunsPhasesInGlobalOrder(t *testing.T) {
	var calls []string
	pool, err := NewPool(recorder{Base{ID: "a"}, &calls}, recorder{Base{ID: "b"}, &calls})
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	basket := newBasket(item("x", "1", 1), item("y", "1", 1))
	if err := NewPipeline(pool, nil, nil).Run(context.Background(), basket); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []string{
		"a:setup_basket", "b:setup_basket",
		"a:setup_item:x", "a:setup_item:y", "b:setup_item:x", "b:setup_item:y",
		"a:process_item:x", "a:process_item:y", "b:process_item:x", "b:process_item:y",
		"a:finalize_item:x", "a:finalize_item:y", "b:finalize_item:x", "b:finalize_item:y",
		"a:process_basket", "b:process_basket",
		"a:finalize_basket", "b:finalize_basket",
	}
	if strings.Join(calls, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected call order:\n got %v\nwant %v", calls, want)
	}
}

func TestPipelineSubtotalIncludesItemCharges(t *testing.T) {
	pool, err := NewPool(itemCharge{Base{ID: "fee"}, decimal.NewFromInt(2)})
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	basket := newBasket(item("x", "10", 3), item("y", "5", 1))
	if err := NewPipeline(pool, nil, nil).Run(context.Background(), basket); err != nil {
		t.Fatalf("run: %v", err)
	}
	x := basket.Items[0].Pricing
	if !x.UnitPrice.Equal(decimal.NewFromInt(10)) || !x.Subtotal.Equal(decimal.NewFromInt(30)) || !x.Total.Equal(decimal.NewFromInt(32)) {
		t.Fatalf("unexpected item pricing %+v", x)
	}
	if !basket.Subtotal().Equal(decimal.NewFromInt(39)) || !basket.Total().Equal(decimal.NewFromInt(39)) {
		t.Fatalf("unexpected basket totals %s / %s", basket.Subtotal(), basket.Total())
	}
}

func TestPipelineIsDeterministic(t *testing.T) {
	pool, err := NewPool(itemCharge{Base{ID: "fee"}, decimal.NewFromInt(1)})
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	pipeline := NewPipeline(pool, nil, nil)
	basket := newBasket(item("x", "3.50", 2))
	for i := 0; i < 3; i++ {
		if err := pipeline.Run(context.Background(), basket); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if !basket.Total().Equal(decimal.NewFromInt(8)) {
			t.Fatalf("run %d: expected total 8, got %s", i, basket.Total())
		}
		if len(basket.Items[0].Pricing.ExtraRows) != 1 {
			t.Fatalf("run %d: extra rows should not accumulate across passes", i)
		}
	}
}

func TestAddExtraRowOverwritesButChargesEveryCall(t *testing.T) {
	base := Base{ID: "mod"}
	basket := &models.Basket{Pricing: models.NewPricing()}
	basket.Pricing.Total = decimal.NewFromInt(100)

	base.AddExtraRow(basket, "first", decimal.NewFromInt(5))
	base.AddExtraRow(basket, "second", decimal.NewFromInt(7))

	rows := basket.Pricing.ExtraRows
	if len(rows) != 1 || rows[0].Label != "second" || !rows[0].Amount.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("expected single overwritten row, got %+v", rows)
	}
	if !basket.Total().Equal(decimal.NewFromInt(112)) {
		t.Fatalf("expected both calls charged (112), got %s", basket.Total())
	}
}

func TestAddExtraRowOptions(t *testing.T) {
	base := Base{ID: "mod"}
	item := &models.BasketItem{}
	base.AddExtraRow(item, "note", decimal.NewFromInt(3), WithoutCharge(), WithIdentifier("custom"), WithExtra(map[string]any{"k": 1}))

	state := item.PricingState()
	if !state.Total.IsZero() {
		t.Fatalf("uncharged row changed total: %s", state.Total)
	}
	row, ok := state.ExtraRows.Get("custom")
	if !ok || row.Extra["k"] != 1 {
		t.Fatalf("expected custom row with extra, got %+v", state.ExtraRows)
	}
}

func TestPipelineAbortsOnHookError(t *testing.T) {
	reg := prometheus.NewRegistry()
	pool, err := NewPool(failing{Base{ID: "bad"}})
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	basket := newBasket(item("x", "1", 1))
	err = NewPipeline(pool, metrics.NewPricingMetrics(reg), nil).Run(context.Background(), basket)
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected hook error unchanged, got %v", err)
	}
	if basket.IsPriced() {
		t.Fatal("failed pass should leave basket unpriced")
	}
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "basket_modifier_failures_total" {
			found = mf.GetMetric()[0].GetCounter().GetValue() == 1
		}
	}
	if !found {
		t.Fatal("expected modifier failure counter")
	}
}

func TestPipelineRequiresResolvedProduct(t *testing.T) {
	basket := newBasket(models.BasketItem{Ref: "x", Quantity: 1})
	if err := NewPipeline(nil, nil, nil).Run(context.Background(), basket); !errors.Is(err, errProductNotResolved) {
		t.Fatalf("expected unresolved product error, got %v", err)
	}
}

func TestNewPoolReportsAllProblems(t *testing.T) {
	_, err := NewPool(nil, Base{}, Base{ID: "dup"}, Base{ID: "dup"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	msg := errors.Unwrap(err).Error()
	for _, part := range []string{"modifier 0 is nil", "no identifier", "duplicates identifier \"dup\""} {
		if !strings.Contains(msg, part) {
			t.Fatalf("expected %q in %q", part, msg)
		}
	}
}

func TestEmptyPoolPricesAtSubtotal(t *testing.T) {
	pool, err := NewPool()
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	basket := newBasket()
	if err := NewPipeline(pool, nil, nil).Run(context.Background(), basket); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !basket.IsPriced() || !basket.Total().IsZero() || basket.Items == nil {
		t.Fatalf("unexpected empty basket state %+v", basket)
	}
}
