package rest

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// The order collaborator is not consistent about where the created order id
// lives. Extraction is an ordered list of candidates, first match wins, so a
// newly observed shape is one entry here rather than another nested branch.
type idExtractor func(body map[string]any) (any, bool)

var orderIDExtractors = []idExtractor{
	func(b map[string]any) (any, bool) { return dig(b, "data", "order", "id") },
	func(b map[string]any) (any, bool) { return dig(b, "data", "id") },
	func(b map[string]any) (any, bool) { return dig(b, "data", "order", "orderId") },
	func(b map[string]any) (any, bool) { return dig(b, "id") },
	func(b map[string]any) (any, bool) { return dig(b, "order_id") },
	func(b map[string]any) (any, bool) { return dig(b, "orderID") },
	func(b map[string]any) (any, bool) { return dig(b, "OrderId") },
	func(b map[string]any) (any, bool) { return dig(b, "order_ID") },
}

var orderNumberExtractors = []idExtractor{
	func(b map[string]any) (any, bool) { return dig(b, "data", "order", "orderNumber") },
	func(b map[string]any) (any, bool) { return dig(b, "data", "orderNumber") },
	func(b map[string]any) (any, bool) { return dig(b, "orderNumber") },
	func(b map[string]any) (any, bool) { return dig(b, "order_number") },
}

// ExtractOrderID scans the raw order-creation response for an order id and
// coerces it to string form. The second return is false when no documented
// location yielded one, even if the call itself reported success.
func ExtractOrderID(rawBody []byte) (string, bool) {
	body, ok := decodeLoose(rawBody)
	if !ok {
		return "", false
	}
	for _, extract := range orderIDExtractors {
		if v, found := extract(body); found {
			if s, ok := coerceString(v); ok {
				return s, true
			}
		}
	}
	return "", false
}

// ExtractOrderNumber is best-effort; a missing order number is not an error.
func ExtractOrderNumber(rawBody []byte) string {
	body, ok := decodeLoose(rawBody)
	if !ok {
		return ""
	}
	for _, extract := range orderNumberExtractors {
		if v, found := extract(body); found {
			if s, ok := coerceString(v); ok {
				return s
			}
		}
	}
	return ""
}

func decodeLoose(rawBody []byte) (map[string]any, bool) {
	var body map[string]any
	dec := json.NewDecoder(bytes.NewReader(rawBody))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, false
	}
	return body, true
}

func dig(m map[string]any, keys ...string) (any, bool) {
	var current any = m
	for _, key := range keys {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	if current == nil {
		return nil, false
	}
	return current, true
}

func coerceString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		if t == "" {
			return "", false
		}
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	}
	return "", false
}
