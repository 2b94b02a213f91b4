package stock

import (
	"context"
	"fmt"

	"github.com/nileshop/checkout/internal/domain/cart"
	"github.com/nileshop/checkout/internal/observability"
	"github.com/nileshop/checkout/internal/observability/logctx"
)

// VariantReader fetches the live available quantity for one variant.
type VariantReader interface {
	VariantQuantity(ctx context.Context, productID, variantID int64) (int, error)
}

// QuantityCache remembers the last successfully fetched quantity per variant.
type QuantityCache interface {
	Put(productID, variantID int64, quantity int)
	Get(productID, variantID int64) (int, bool)
}

// InsufficientStockError reports the first line whose availability fell short,
// with enough detail for user display.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	VariantID   int64
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock: %s (product %d, variant %d): available=%d, requested=%d",
		e.ProductName, e.ProductID, e.VariantID, e.Available, e.Requested)
}

// Validator checks cart lines against live inventory. It has no side effects
// beyond refreshing the quantity cache.
type Validator struct {
	inventory VariantReader
	cache     QuantityCache
	log       observability.Logger
}

func NewValidator(inventory VariantReader, cache QuantityCache, logger observability.Logger) *Validator {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Validator{
		inventory: inventory,
		cache:     cache,
		log:       logger.With(observability.F("component", "stock_validator")),
	}
}

// CheckAvailability verifies every snapshot line fits current stock, failing
// fast on the first short line. When the inventory fetch fails for a line the
// last cached quantity is used instead; with no cached value either, the line
// passes and the remote checkout commit remains the enforcement point.
func (v *Validator) CheckAvailability(ctx context.Context, snapshot cart.Snapshot) error {
	logger := logctx.FromOr(ctx, v.log)

	for _, line := range snapshot.Lines {
		available, err := v.inventory.VariantQuantity(ctx, line.ProductID, line.VariantID)
		if err != nil {
			cached, ok := v.cache.Get(line.ProductID, line.VariantID)
			if !ok {
				logger.Warn("stock_check_degraded_no_cache",
					observability.F("product_id", line.ProductID),
					observability.F("variant_id", line.VariantID),
					observability.F("error", err.Error()),
				)
				continue
			}
			logger.Warn("stock_check_stale_read",
				observability.F("product_id", line.ProductID),
				observability.F("variant_id", line.VariantID),
				observability.F("cached_quantity", cached),
				observability.F("error", err.Error()),
			)
			available = cached
		} else {
			v.cache.Put(line.ProductID, line.VariantID, available)
		}

		if available < line.Quantity {
			return &InsufficientStockError{
				ProductID:   line.ProductID,
				ProductName: line.ProductName,
				VariantID:   line.VariantID,
				Available:   available,
				Requested:   line.Quantity,
			}
		}
	}
	return nil
}
