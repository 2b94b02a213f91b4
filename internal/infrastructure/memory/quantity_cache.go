package memory

import (
	"sync"
	"time"
)

type variantKey struct {
	productID int64
	variantID int64
}

type cachedQuantity struct {
	quantity int
	seenAt   time.Time
}

// QuantityCache remembers the last quantity successfully fetched for each
// variant. The stock validator falls back to it when the inventory
// collaborator is unreachable, preferring a stale read over failing the
// whole availability check.
type QuantityCache struct {
	mu      sync.RWMutex
	entries map[variantKey]cachedQuantity
}

func NewQuantityCache() *QuantityCache {
	return &QuantityCache{entries: make(map[variantKey]cachedQuantity)}
}

func (c *QuantityCache) Put(productID, variantID int64, quantity int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[variantKey{productID, variantID}] = cachedQuantity{
		quantity: quantity,
		seenAt:   time.Now().UTC(),
	}
}

func (c *QuantityCache) Get(productID, variantID int64) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[variantKey{productID, variantID}]
	if !ok {
		return 0, false
	}
	return entry.quantity, true
}
