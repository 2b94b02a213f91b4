package payment

import "errors"

var ErrMissingOrderID = errors.New("payment: order id is required")

// Request is the canonical payment payload. It can only be obtained through
// NewRequest, which guarantees phone and currency normalization succeeded
// before the value exists.
type Request struct {
	OrderID           string
	WalletPhoneNumber string
	CurrencyCode      string
	PaymentMethodID   int64
	Notes             string
}

func NewRequest(orderID, rawPhone, rawCurrency string, paymentMethodID int64, notes string) (Request, error) {
	return NewRequestForMarket(orderID, rawPhone, rawCurrency, paymentMethodID, notes, DefaultDialPrefix)
}

// NewRequestForMarket builds the request with a market-specific dial prefix
// for the local phone rewrite rule.
func NewRequestForMarket(orderID, rawPhone, rawCurrency string, paymentMethodID int64, notes, dialPrefix string) (Request, error) {
	if orderID == "" {
		return Request{}, ErrMissingOrderID
	}
	phone, err := NormalizePhoneForMarket(rawPhone, dialPrefix)
	if err != nil {
		return Request{}, err
	}
	currency, err := NormalizeCurrency(rawCurrency)
	if err != nil {
		return Request{}, err
	}
	return Request{
		OrderID:           orderID,
		WalletPhoneNumber: phone,
		CurrencyCode:      currency,
		PaymentMethodID:   paymentMethodID,
		Notes:             notes,
	}, nil
}

// Outcome is the provider response for a submitted payment. A required
// redirect is a success variant, not a failure.
type Outcome struct {
	RedirectRequired bool
	RedirectURL      string
	Message          string
}
