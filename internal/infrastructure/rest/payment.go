package rest

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/nileshop/checkout/internal/domain/payment"
	"github.com/nileshop/checkout/internal/observability"
)

// PaymentClient submits canonical payment requests to the wallet provider.
type PaymentClient struct {
	c *Client
}

func NewPaymentClient(baseURL string, httpClient *http.Client, tel observability.Observability, tokenFn func() string) *PaymentClient {
	return &PaymentClient{c: NewClient(baseURL, "payment", httpClient, tel, tokenFn)}
}

type payRequest struct {
	OrderID           string `json:"orderId"`
	WalletPhoneNumber string `json:"walletPhoneNumber"`
	Currency          string `json:"currency"`
	PaymentMethodID   int64  `json:"paymentMethodId"`
	Notes             string `json:"notes,omitempty"`
}

type payPayload struct {
	IsRedirectRequired bool   `json:"isRedirectRequired"`
	RedirectURL        string `json:"redirectUrl"`
	Message            string `json:"message"`
}

// Pay submits the payment. A redirect-required answer is a success variant:
// the caller opens the URL out-of-band.
func (pc *PaymentClient) Pay(ctx context.Context, req payment.Request) (payment.Outcome, error) {
	body := payRequest{
		OrderID:           req.OrderID,
		WalletPhoneNumber: req.WalletPhoneNumber,
		Currency:          req.CurrencyCode,
		PaymentMethodID:   req.PaymentMethodID,
		Notes:             req.Notes,
	}

	env, rawBody, err := pc.c.call(ctx, http.MethodPost, "payment_pay", "/payment", body)
	if err != nil {
		return payment.Outcome{}, err
	}

	var payload payPayload
	if len(env.Data) > 0 {
		_ = json.Unmarshal(env.Data, &payload)
	}
	if !payload.IsRedirectRequired && payload.Message == "" && payload.RedirectURL == "" {
		// Some deployments answer flat, without the data envelope.
		_ = json.Unmarshal(rawBody, &payload)
	}

	outcome := payment.Outcome{
		RedirectRequired: payload.IsRedirectRequired,
		RedirectURL:      payload.RedirectURL,
		Message:          payload.Message,
	}
	if outcome.Message == "" {
		outcome.Message = env.Message
	}
	return outcome, nil
}
