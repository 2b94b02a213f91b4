package rest

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/nileshop/checkout/internal/domain/checkout"
	"github.com/nileshop/checkout/internal/observability"
)

// OrderClient creates order records and reads them back.
type OrderClient struct {
	c *Client
}

func NewOrderClient(baseURL string, httpClient *http.Client, tel observability.Observability, tokenFn func() string) *OrderClient {
	return &OrderClient{c: NewClient(baseURL, "order", httpClient, tel, tokenFn)}
}

type createOrderRequest struct {
	AddressID       int64  `json:"addressId"`
	Notes           string `json:"notes"`
	PaymentMethodID int64  `json:"paymentMethodId"`
}

// Create submits the order and extracts its identifiers from whichever shape
// the collaborator chose to answer with. A success envelope that carries no
// recognizable id yields checkout.ErrOrderIDMissing; the caller must not treat that as
// a created order.
func (oc *OrderClient) Create(ctx context.Context, addressID int64, notes string, paymentMethodID int64) (checkout.OrderHandle, error) {
	body := createOrderRequest{AddressID: addressID, Notes: notes, PaymentMethodID: paymentMethodID}
	_, rawBody, err := oc.c.call(ctx, http.MethodPost, "order_create", "/order", body)
	if err != nil {
		return checkout.OrderHandle{}, err
	}

	orderID, ok := ExtractOrderID(rawBody)
	if !ok {
		return checkout.OrderHandle{}, checkout.ErrOrderIDMissing
	}

	return checkout.OrderHandle{
		OrderID:     orderID,
		OrderNumber: ExtractOrderNumber(rawBody),
	}, nil
}

// Exists re-verifies an order by id before payment is attempted.
func (oc *OrderClient) Exists(ctx context.Context, orderID string) (bool, error) {
	path := "/order/" + url.PathEscape(orderID)
	err := oc.c.do(ctx, http.MethodGet, "order_get", path, nil, nil)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
