package modifiers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/extra"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

var errProductNotResolved = errors.New("basket item product not resolved")

// Pipeline runs the pool over a basket in the fixed phase order:
// setup basket, setup items, base prices, process items, finalize items,
// process basket, finalize basket.
type Pipeline struct {
	pool    *Pool
	metrics *metrics.PricingMetrics
	logg    *logger.Logger
}

func NewPipeline(pool *Pool, m *metrics.PricingMetrics, logg *logger.Logger) *Pipeline {
	if pool == nil {
		pool = &Pool{}
	}
	return &Pipeline{pool: pool, metrics: m, logg: logg}
}

// Run prices basket.Items in place. Every item must carry its resolved
// Product. The first hook error aborts the pass, leaves the basket unpriced
// and is returned as is.
func (p *Pipeline) Run(ctx context.Context, basket *models.Basket) (err error) {
	started := time.Now()
	defer func() {
		if err != nil {
			basket.Pricing = nil
		}
		p.metrics.ObservePass(time.Since(started), err)
	}()

	if basket.Items == nil {
		basket.Items = []models.BasketItem{}
	}
	items := basket.Items
	mods := p.pool.Modifiers()

	for _, mod := range mods {
		if hook, ok := mod.(BasketSetup); ok {
			if err := hook.SetupBasket(ctx, basket); err != nil {
				return p.fail(ctx, mod, "setup_basket", err)
			}
		}
	}
	for _, mod := range mods {
		hook, ok := mod.(ItemSetup)
		if !ok {
			continue
		}
		for i := range items {
			if err := hook.SetupItem(ctx, &items[i]); err != nil {
				return p.fail(ctx, mod, "setup_item", err)
			}
		}
	}

	basket.Pricing = models.NewPricing()
	for i := range items {
		if err := resetItem(ctx, &items[i]); err != nil {
			return err
		}
	}

	for _, mod := range mods {
		hook, ok := mod.(ItemProcessor)
		if !ok {
			continue
		}
		for i := range items {
			if err := hook.ProcessItem(ctx, &items[i]); err != nil {
				return p.fail(ctx, mod, "process_item", err)
			}
		}
	}
	for i := range items {
		basket.Pricing.Subtotal = basket.Pricing.Subtotal.Add(items[i].Pricing.Total)
	}
	basket.Pricing.Total = basket.Pricing.Subtotal

	for _, mod := range mods {
		hook, ok := mod.(ItemFinalizer)
		if !ok {
			continue
		}
		for i := range items {
			if err := hook.FinalizeItem(ctx, &items[i]); err != nil {
				return p.fail(ctx, mod, "finalize_item", err)
			}
		}
	}
	for _, mod := range mods {
		if hook, ok := mod.(BasketProcessor); ok {
			if err := hook.ProcessBasket(ctx, basket); err != nil {
				return p.fail(ctx, mod, "process_basket", err)
			}
		}
	}
	for _, mod := range mods {
		if hook, ok := mod.(BasketFinalizer); ok {
			if err := hook.FinalizeBasket(ctx, basket); err != nil {
				return p.fail(ctx, mod, "finalize_basket", err)
			}
		}
	}

	basket.Items = items
	if p.logg != nil {
		logCtx := p.logg.WithFields(ctx, map[string]any{
			"basket_id": basket.ID.String(),
			"items":     len(items),
			"total":     basket.Pricing.Total.String(),
		})
		p.logg.Debug(logCtx, "basket priced")
	}
	return nil
}

func resetItem(ctx context.Context, item *models.BasketItem) error {
	if item.Product == nil {
		return fmt.Errorf("%w: %s", errProductNotResolved, item.Ref)
	}
	unit, err := item.Product.UnitPrice(ctx)
	if err != nil {
		return err
	}
	subtotal := unit.Mul(decimal.NewFromInt(int64(item.Quantity)))
	item.Pricing = &models.ItemPricing{
		UnitPrice: unit,
		Pricing: models.Pricing{
			Subtotal:  subtotal,
			Total:     subtotal,
			ExtraRows: extra.NewRows(),
		},
	}
	return nil
}

func (p *Pipeline) fail(ctx context.Context, mod Modifier, phase string, err error) error {
	p.metrics.IncModifierFailure(mod.Identifier())
	if p.logg != nil {
		logCtx := p.logg.WithFields(ctx, map[string]any{
			"modifier": mod.Identifier(),
			"phase":    phase,
		})
		p.logg.Warn(logCtx, "basket modifier failed")
	}
	return err
}
