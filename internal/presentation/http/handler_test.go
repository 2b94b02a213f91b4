package httppresentation

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	appaddress "github.com/nileshop/checkout/internal/application/address"
	appcart "github.com/nileshop/checkout/internal/application/cart"
	appcheckout "github.com/nileshop/checkout/internal/application/checkout"
	"github.com/nileshop/checkout/internal/application/stock"
	"github.com/nileshop/checkout/internal/infrastructure/id"
	"github.com/nileshop/checkout/internal/infrastructure/memory"
	"github.com/nileshop/checkout/internal/infrastructure/rest"
	"github.com/nileshop/checkout/internal/session"
)

// collaborators is one fake upstream standing in for all four services,
// answering in the envelope convention.
func collaborators(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/products/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":200,"data":{"quantity":10}}`))
	})
	mux.HandleFunc("/cart/items", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":200,"message":"added"}`))
	})
	mux.HandleFunc("/cart/checkout", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":200,"message":"committed"}`))
	})
	mux.HandleFunc("/cart", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":200,"data":{"items":[]}}`))
	})
	mux.HandleFunc("/addresses", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":200,"data":[
			{"id":3,"country":"EG","city":"Cairo","streetAddress":"1 Tahrir Square","postalCode":"11511","isDefault":true}
		]}`))
	})
	mux.HandleFunc("/order", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":201,"data":{"order":{"id":42,"orderNumber":"ORD-42"}}}`))
	})
	mux.HandleFunc("/order/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":200,"data":{"id":42}}`))
	})
	mux.HandleFunc("/payment", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":200,"data":{"message":"Done"}}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// newServer wires the full stack against the fake collaborators, the same
// shape the composition root uses.
func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	upstream := collaborators(t)
	httpClient := upstream.Client()
	cache := memory.NewQuantityCache()
	idGen := id.NewUUIDGenerator()

	factory := session.Factory(func(token string) *session.Session {
		tokenFn := func() string { return token }

		cartClient := rest.NewCartClient(upstream.URL, httpClient, nil, tokenFn)
		coordinator := appcart.NewCoordinator(cartClient, nil, nil)
		gate := appcheckout.NewGate(cartClient, coordinator, nil, nil)
		coordinator.OnMutate(gate.Invalidate)

		selector := appaddress.NewSelector(rest.NewAddressClient(upstream.URL, httpClient, nil, tokenFn), nil)
		validator := stock.NewValidator(rest.NewInventoryClient(upstream.URL, httpClient, nil, tokenFn), cache, nil)
		orchestrator := appcheckout.NewOrchestrator(
			validator, gate, selector, coordinator,
			rest.NewOrderClient(upstream.URL, httpClient, nil, tokenFn),
			rest.NewPaymentClient(upstream.URL, httpClient, nil, tokenFn),
			nil, idGen, "+20", nil,
		)

		return &session.Session{
			Token:        token,
			Cart:         coordinator,
			Gate:         gate,
			Addresses:    selector,
			Orchestrator: orchestrator,
		}
	})

	handler := NewHandler(session.NewManager(factory, nil), nil, nil)
	srv := httptest.NewServer(handler.Router())
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, srv *httptest.Server, method, path, token, body string) (int, []byte) {
	t.Helper()

	var payload io.Reader
	if body != "" {
		payload = bytes.NewReader([]byte(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, payload)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("X-Session-Token", token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	status, body := doRequest(t, srv, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", string(body))
}

func TestSessionRequired(t *testing.T) {
	t.Parallel()

	srv := newServer(t)

	status, _ := doRequest(t, srv, http.MethodGet, "/cart", "", "")
	require.Equal(t, http.StatusUnauthorized, status)

	// A token that never logged in is also rejected.
	status, _ = doRequest(t, srv, http.MethodGet, "/cart", "ghost", "")
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	status, _ := doRequest(t, srv, http.MethodPut, "/cart", "tok", "")
	require.Equal(t, http.StatusMethodNotAllowed, status)
}

func TestLoginAddToCartAndReadBack(t *testing.T) {
	t.Parallel()

	srv := newServer(t)

	status, _ := doRequest(t, srv, http.MethodPost, "/session", "tok-1", "")
	require.Equal(t, http.StatusCreated, status)

	status, body := doRequest(t, srv, http.MethodPost, "/cart/items", "tok-1",
		`{"productId":10,"productName":"tee","variantId":20,"quantity":2,"unitPrice":"50"}`)
	require.Equal(t, http.StatusCreated, status)

	var added struct {
		RemoteSynced bool   `json:"remoteSynced"`
		Warning      string `json:"warning"`
	}
	require.NoError(t, json.Unmarshal(body, &added))
	require.True(t, added.RemoteSynced)
	require.Empty(t, added.Warning)

	// Same variant again conflicts.
	status, _ = doRequest(t, srv, http.MethodPost, "/cart/items", "tok-1",
		`{"productId":10,"productName":"tee","variantId":20,"quantity":1,"unitPrice":"50"}`)
	require.Equal(t, http.StatusConflict, status)

	status, body = doRequest(t, srv, http.MethodGet, "/cart", "tok-1", "")
	require.Equal(t, http.StatusOK, status)

	var view struct {
		Lines []struct {
			ProductID int64  `json:"productId"`
			Subtotal  string `json:"subtotal"`
		} `json:"lines"`
		Subtotal string `json:"subtotal"`
		Checkout string `json:"checkoutState"`
	}
	require.NoError(t, json.Unmarshal(body, &view))
	require.Len(t, view.Lines, 1)
	require.Equal(t, "100", view.Subtotal)
	require.Equal(t, "not_started", view.Checkout)
}

func TestRemoveLine(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	doRequest(t, srv, http.MethodPost, "/session", "tok-1", "")
	doRequest(t, srv, http.MethodPost, "/cart/items", "tok-1",
		`{"productId":10,"productName":"tee","variantId":20,"quantity":2,"unitPrice":"50"}`)

	status, _ := doRequest(t, srv, http.MethodDelete, "/cart/items", "tok-1",
		`{"productId":10,"variantId":20}`)
	require.Equal(t, http.StatusNoContent, status)

	status, _ = doRequest(t, srv, http.MethodDelete, "/cart/items", "tok-1",
		`{"productId":10,"variantId":20}`)
	require.Equal(t, http.StatusNotFound, status)
}

func TestFullCheckoutFlow(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	doRequest(t, srv, http.MethodPost, "/session", "tok-1", "")
	doRequest(t, srv, http.MethodPost, "/cart/items", "tok-1",
		`{"productId":10,"productName":"tee","variantId":20,"quantity":2,"unitPrice":"50"}`)

	status, body := doRequest(t, srv, http.MethodGet, "/addresses", "tok-1", "")
	require.Equal(t, http.StatusOK, status)
	require.True(t, strings.Contains(string(body), "Tahrir"))

	status, _ = doRequest(t, srv, http.MethodPost, "/addresses/select", "tok-1", `{"id":3}`)
	require.Equal(t, http.StatusNoContent, status)

	status, body = doRequest(t, srv, http.MethodPost, "/checkout/commit", "tok-1", "")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, string(body), "completed")

	status, body = doRequest(t, srv, http.MethodPost, "/orders", "tok-1",
		`{"notes":"ring the bell","paymentMethodId":1,"walletPhone":"01012345678","currency":"egp"}`)
	require.Equal(t, http.StatusCreated, status)

	var placed struct {
		OrderID     string `json:"orderId"`
		OrderNumber string `json:"orderNumber"`
		Total       string `json:"total"`
		Message     string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(body, &placed))
	require.Equal(t, "42", placed.OrderID)
	require.Equal(t, "ORD-42", placed.OrderNumber)
	require.Equal(t, "100", placed.Total)
	require.Equal(t, "Done", placed.Message)
}

func TestPlaceOrderWithEmptyCart(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	doRequest(t, srv, http.MethodPost, "/session", "tok-1", "")

	status, body := doRequest(t, srv, http.MethodPost, "/orders", "tok-1",
		`{"notes":"","paymentMethodId":1,"walletPhone":"01012345678","currency":"egp"}`)
	require.Equal(t, http.StatusUnprocessableEntity, status)

	var failed struct {
		Stage  string `json:"stage"`
		Reason string `json:"reason"`
	}
	require.NoError(t, json.Unmarshal(body, &failed))
	require.Equal(t, "stock", failed.Stage)
	require.Equal(t, "cart-empty", failed.Reason)
}

func TestLogoutDropsSession(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	doRequest(t, srv, http.MethodPost, "/session", "tok-1", "")

	status, _ := doRequest(t, srv, http.MethodDelete, "/session", "tok-1", "")
	require.Equal(t, http.StatusNoContent, status)

	status, _ = doRequest(t, srv, http.MethodGet, "/cart", "tok-1", "")
	require.Equal(t, http.StatusUnauthorized, status)
}
