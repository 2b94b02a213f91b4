package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nileshop/checkout/internal/observability"
)

// InventoryClient reads live variant stock levels.
type InventoryClient struct {
	c *Client
}

func NewInventoryClient(baseURL string, httpClient *http.Client, tel observability.Observability, tokenFn func() string) *InventoryClient {
	return &InventoryClient{c: NewClient(baseURL, "inventory", httpClient, tel, tokenFn)}
}

type variantPayload struct {
	Quantity int `json:"quantity"`
}

// VariantQuantity fetches the latest available quantity for one variant.
func (ic *InventoryClient) VariantQuantity(ctx context.Context, productID, variantID int64) (int, error) {
	var payload variantPayload
	path := fmt.Sprintf("/products/%d/variants/%d", productID, variantID)
	if err := ic.c.do(ctx, http.MethodGet, "variant_get", path, nil, &payload); err != nil {
		return 0, err
	}
	return payload.Quantity, nil
}
