package rest

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/nileshop/checkout/internal/domain/cart"
	"github.com/nileshop/checkout/internal/observability"
)

// CartClient talks to the remote cart owned by the inventory/cart service.
// There is no remote remove-item endpoint; removal is a local-only operation
// by design of the upstream contract.
type CartClient struct {
	c *Client
}

func NewCartClient(baseURL string, httpClient *http.Client, tel observability.Observability, tokenFn func() string) *CartClient {
	return &CartClient{c: NewClient(baseURL, "cart", httpClient, tel, tokenFn)}
}

type addItemRequest struct {
	ProductID int64 `json:"productId"`
	VariantID int64 `json:"variantId"`
	Quantity  int   `json:"quantity"`
}

// AddItem pushes one line to the remote cart.
func (cc *CartClient) AddItem(ctx context.Context, productID, variantID int64, quantity int) error {
	body := addItemRequest{ProductID: productID, VariantID: variantID, Quantity: quantity}
	return cc.c.do(ctx, http.MethodPost, "cart_add_item", "/cart/items", body, nil)
}

// Commit runs the remote checkout operation. It reserves stock for every
// line and empties the remote cart as a side effect; callers must replay the
// cart afterwards if downstream steps need it populated.
func (cc *CartClient) Commit(ctx context.Context) error {
	return cc.c.do(ctx, http.MethodPost, "cart_checkout", "/cart/checkout", struct{}{}, nil)
}

type remoteCartPayload struct {
	Items []remoteCartItem `json:"items"`
}

type remoteCartItem struct {
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	VariantID   int64           `json:"variantId"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// Fetch pulls the authoritative remote cart contents.
func (cc *CartClient) Fetch(ctx context.Context) (cart.Snapshot, error) {
	var payload remoteCartPayload
	if err := cc.c.do(ctx, http.MethodGet, "cart_get", "/cart", nil, &payload); err != nil {
		return cart.Snapshot{}, err
	}

	lines := make([]cart.Line, 0, len(payload.Items))
	for _, item := range payload.Items {
		line, err := cart.NewLine(item.ProductID, item.VariantID, item.ProductName, item.Quantity, item.UnitPrice)
		if err != nil {
			// Skip malformed remote lines rather than failing the read.
			continue
		}
		lines = append(lines, line)
	}
	return cart.NewSnapshot(lines), nil
}
