package rest

import (
	"context"
	"net/http"

	"github.com/nileshop/checkout/internal/domain/address"
	"github.com/nileshop/checkout/internal/observability"
)

// AddressClient fetches the customer's delivery addresses. This core never
// writes addresses back.
type AddressClient struct {
	c *Client
}

func NewAddressClient(baseURL string, httpClient *http.Client, tel observability.Observability, tokenFn func() string) *AddressClient {
	return &AddressClient{c: NewClient(baseURL, "address", httpClient, tel, tokenFn)}
}

type addressItem struct {
	ID            int64  `json:"id"`
	Country       string `json:"country"`
	City          string `json:"city"`
	StreetAddress string `json:"streetAddress"`
	PostalCode    string `json:"postalCode"`
	Phone         string `json:"phone"`
	IsDefault     bool   `json:"isDefault"`
}

func (ac *AddressClient) Addresses(ctx context.Context) ([]address.Address, error) {
	var payload []addressItem
	if err := ac.c.do(ctx, http.MethodGet, "addresses_list", "/addresses", nil, &payload); err != nil {
		return nil, err
	}

	out := make([]address.Address, 0, len(payload))
	for _, item := range payload {
		out = append(out, address.Address{
			ID:            item.ID,
			Country:       item.Country,
			City:          item.City,
			StreetAddress: item.StreetAddress,
			PostalCode:    item.PostalCode,
			Phone:         item.Phone,
			IsDefault:     item.IsDefault,
		})
	}
	return out, nil
}
