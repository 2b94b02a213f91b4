package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	appcheckout "github.com/nileshop/checkout/internal/application/checkout"
	"github.com/nileshop/checkout/internal/application/stock"
	domaddr "github.com/nileshop/checkout/internal/domain/address"
	domcart "github.com/nileshop/checkout/internal/domain/cart"
	domcheckout "github.com/nileshop/checkout/internal/domain/checkout"
	"github.com/nileshop/checkout/internal/infrastructure/rest"
	"github.com/nileshop/checkout/internal/observability"
	"github.com/nileshop/checkout/internal/observability/logctx"
	"github.com/nileshop/checkout/internal/session"
)

type Handler struct {
	sessions *session.Manager
	log      observability.Logger
	tel      observability.Observability
}

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	headerSessionToken   = "X-Session-Token"
)

func NewHandler(sessions *session.Manager, logger observability.Logger, tel observability.Observability) *Handler {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = observability.NopLogger()
	}
	return &Handler{
		sessions: sessions,
		log:      baseLogger.With(observability.F("component", componentHTTPHandler)),
		tel:      tel,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// Wire each route with middlewares:
	// Trace → ObservabilityMiddleware (request logger) → HTTP metrics → Access log → Handler
	h.muxHandle(mux, http.MethodPost, "/session", h.handleLogin)
	h.muxHandle(mux, http.MethodDelete, "/session", h.handleLogout)
	h.muxHandle(mux, http.MethodGet, "/cart", h.withSession(h.handleGetCart))
	h.muxHandle(mux, http.MethodPost, "/cart/items", h.withSession(h.handleAddLine))
	h.muxHandle(mux, http.MethodDelete, "/cart/items", h.withSession(h.handleRemoveLine))
	h.muxHandle(mux, http.MethodPost, "/checkout/commit", h.withSession(h.handleCommit))
	h.muxHandle(mux, http.MethodGet, "/addresses", h.withSession(h.handleAddresses))
	h.muxHandle(mux, http.MethodPost, "/addresses/select", h.withSession(h.handleSelectAddress))
	h.muxHandle(mux, http.MethodPost, "/orders", h.withSession(h.handlePlaceOrder))
	h.muxHandle(mux, http.MethodGet, "/health", h.handleHealth)

	return mux
}

func (h *Handler) muxHandle(mux *http.ServeMux, method, route string, handler http.HandlerFunc) {
	// Method-qualified pattern; the mux answers 405 for the wrong method.
	mux.HandleFunc(method+" "+route, func(w http.ResponseWriter, r *http.Request) {
		// Store stable route template for low-cardinality labels
		ctx := contextWithRoute(r.Context(), method+" "+route)
		r = r.WithContext(ctx)

		wrapped := h.withTrace(
			ObservabilityMiddleware(
				logctx.FromOr(ctx, h.log),
				func(r *http.Request) string {
					return r.Header.Get(headerRequestID)
				},
				h.tel,
			)(
				h.withAccessLog(http.HandlerFunc(handler)),
			),
		)
		wrapped.ServeHTTP(w, r)
	})
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, s *session.Session)

// withSession resolves the caller's session from the token header. Routes
// behind it require a prior login.
func (h *Handler) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(headerSessionToken)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing "+headerSessionToken+" header")
			return
		}
		s, err := h.sessions.Get(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unknown session; login first")
			return
		}
		next(w, r, s)
	}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(headerSessionToken)
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing "+headerSessionToken+" header")
		return
	}
	s := h.sessions.Begin(token)
	writeJSON(w, http.StatusCreated, map[string]any{
		"startedAt": s.StartedAt,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(headerSessionToken)
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing "+headerSessionToken+" header")
		return
	}
	h.sessions.End(token)
	w.WriteHeader(http.StatusNoContent)
}

type addLineRequest struct {
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	VariantID   int64           `json:"variantId"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

type addLineResponse struct {
	ProductID    int64  `json:"productId"`
	VariantID    int64  `json:"variantId"`
	Quantity     int    `json:"quantity"`
	RemoteSynced bool   `json:"remoteSynced"`
	Warning      string `json:"warning,omitempty"`
}

func (h *Handler) handleAddLine(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var req addLineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.Cart.AddLine(r.Context(), req.ProductID, req.VariantID, req.ProductName, req.Quantity, req.UnitPrice)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := addLineResponse{
		ProductID:    result.Line.ProductID,
		VariantID:    result.Line.VariantID,
		Quantity:     result.Line.Quantity,
		RemoteSynced: result.RemoteSynced,
	}
	if !result.RemoteSynced {
		resp.Warning = "item kept locally but the remote cart did not accept it"
	}
	writeJSON(w, http.StatusCreated, resp)
}

type removeLineRequest struct {
	ProductID int64 `json:"productId"`
	VariantID int64 `json:"variantId"`
}

func (h *Handler) handleRemoveLine(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var req removeLineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Cart.RemoveLine(r.Context(), req.ProductID, req.VariantID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type cartLineView struct {
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	VariantID   int64           `json:"variantId"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type cartView struct {
	Lines    []cartLineView  `json:"lines"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Checkout string          `json:"checkoutState"`
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request, s *session.Session) {
	lines := s.Cart.Lines()
	view := cartView{
		Lines:    make([]cartLineView, 0, len(lines)),
		Subtotal: s.Cart.Snapshot().Subtotal(),
		Checkout: string(s.Gate.Status()),
	}
	for _, l := range lines {
		view.Lines = append(view.Lines, cartLineView{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			VariantID:   l.VariantID,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Subtotal:    l.Subtotal(),
		})
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleCommit(w http.ResponseWriter, r *http.Request, s *session.Session) {
	if err := s.Gate.Commit(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"checkoutState": string(s.Gate.Status()),
	})
}

type addressView struct {
	ID            int64  `json:"id"`
	Country       string `json:"country"`
	City          string `json:"city"`
	StreetAddress string `json:"streetAddress"`
	PostalCode    string `json:"postalCode"`
	Phone         string `json:"phone"`
	IsDefault     bool   `json:"isDefault"`
}

func (h *Handler) handleAddresses(w http.ResponseWriter, r *http.Request, s *session.Session) {
	addresses, err := s.Addresses.Load(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]addressView, 0, len(addresses))
	for _, a := range addresses {
		out = append(out, addressView{
			ID:            a.ID,
			Country:       a.Country,
			City:          a.City,
			StreetAddress: a.StreetAddress,
			PostalCode:    a.PostalCode,
			Phone:         a.Phone,
			IsDefault:     a.IsDefault,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type selectAddressRequest struct {
	ID int64 `json:"id"`
}

func (h *Handler) handleSelectAddress(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var req selectAddressRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Addresses.Select(r.Context(), req.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type placeOrderRequest struct {
	Notes           string `json:"notes"`
	PaymentMethodID int64  `json:"paymentMethodId"`
	WalletPhone     string `json:"walletPhone"`
	Currency        string `json:"currency"`
}

type placeOrderResponse struct {
	AttemptID        string          `json:"attemptId"`
	OrderID          string          `json:"orderId"`
	OrderNumber      string          `json:"orderNumber,omitempty"`
	Total            decimal.Decimal `json:"total"`
	RedirectRequired bool            `json:"redirectRequired"`
	RedirectURL      string          `json:"redirectUrl,omitempty"`
	Message          string          `json:"message,omitempty"`
}

func (h *Handler) handlePlaceOrder(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var req placeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.Orchestrator.Execute(r.Context(), appcheckout.PlaceOrderInput{
		Notes:           req.Notes,
		PaymentMethodID: req.PaymentMethodID,
		WalletPhone:     req.WalletPhone,
		Currency:        req.Currency,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, placeOrderResponse{
		AttemptID:        result.AttemptID,
		OrderID:          result.OrderID,
		OrderNumber:      result.OrderNumber,
		Total:            result.Total,
		RedirectRequired: result.RedirectRequired,
		RedirectURL:      result.RedirectURL,
		Message:          result.Message,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("checkout.http")
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		route := routeFromContext(parentCtx)
		spanName := route
		if spanName == "unknown" {
			spanName = r.Method + " " + r.URL.Path
		}
		template := route
		if idx := strings.Index(template, " "); idx >= 0 {
			template = template[idx+1:]
		}
		if template == "unknown" || template == "" {
			template = r.URL.Path
		}

		ctxWithSpan, span := tracer.Start(parentCtx,
			spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", template),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctxWithSpan))
	})
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

// writeDomainError maps the error taxonomy onto HTTP statuses with one
// actionable message each; the generic fallback is only used when nothing
// more specific is known.
func writeDomainError(w http.ResponseWriter, err error) {
	var failure *domcheckout.Failure
	if errors.As(err, &failure) {
		payload := map[string]any{
			"error":  "checkout failed",
			"stage":  string(failure.Stage),
			"reason": failure.Reason,
		}
		if failure.Err != nil {
			payload["detail"] = failure.Err.Error()
		}
		writeJSON(w, http.StatusUnprocessableEntity, payload)
		return
	}

	var missing *domaddr.MissingFieldsError
	if errors.As(err, &missing) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":         "address is missing required fields",
			"missingFields": missing.Fields,
		})
		return
	}

	var shortage *stock.InsufficientStockError
	if errors.As(err, &shortage) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     "insufficient stock",
			"product":   shortage.ProductName,
			"available": shortage.Available,
			"requested": shortage.Requested,
		})
		return
	}

	switch {
	case errors.Is(err, domcart.ErrAlreadyInCart):
		writeError(w, http.StatusConflict, "this variant is already in the cart")
	case errors.Is(err, domcart.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, "quantity must be at least 1")
	case errors.Is(err, domcart.ErrLineNotFound):
		writeError(w, http.StatusNotFound, "line is not in the cart")
	case errors.Is(err, domaddr.ErrNoneSelected):
		writeError(w, http.StatusBadRequest, "select a delivery address first")
	case errors.Is(err, domcheckout.ErrNotCheckedOut):
		writeError(w, http.StatusConflict, "checkout must be committed before creating an order")
	case errors.Is(err, domcheckout.ErrAttemptInFlight):
		writeError(w, http.StatusConflict, "a checkout attempt is already in progress")
	case errors.Is(err, rest.ErrNetwork):
		writeError(w, http.StatusBadGateway, "a collaborator service is unreachable")
	case errors.Is(err, rest.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found upstream")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

type routeKey struct{}

func contextWithRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}
