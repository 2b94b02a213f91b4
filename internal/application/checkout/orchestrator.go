package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nileshop/checkout/internal/application"
	"github.com/nileshop/checkout/internal/application/stock"
	domaddr "github.com/nileshop/checkout/internal/domain/address"
	domcart "github.com/nileshop/checkout/internal/domain/cart"
	"github.com/nileshop/checkout/internal/domain/checkout"
	"github.com/nileshop/checkout/internal/domain/outbox"
	"github.com/nileshop/checkout/internal/domain/payment"
	"github.com/nileshop/checkout/internal/observability"
	"github.com/nileshop/checkout/internal/observability/logctx"
)

const (
	useCasePlaceOrder = "checkout.place_order"
	spanPrefix        = "UC."
)

// StockChecker validates cart lines against live inventory.
type StockChecker interface {
	CheckAvailability(ctx context.Context, snapshot domcart.Snapshot) error
}

// AddressSource yields the validated delivery address for this attempt.
type AddressSource interface {
	SelectedOrFail() (domaddr.Address, error)
}

// CartRestorer is the compensation hook back into the cart coordinator.
type CartRestorer interface {
	Snapshot() domcart.Snapshot
	Restore(ctx context.Context, snapshot domcart.Snapshot) (int, error)
}

// OrderService creates order records and reads them back.
type OrderService interface {
	Create(ctx context.Context, addressID int64, notes string, paymentMethodID int64) (checkout.OrderHandle, error)
	Exists(ctx context.Context, orderID string) (bool, error)
}

// PaymentService submits canonical payment requests.
type PaymentService interface {
	Pay(ctx context.Context, req payment.Request) (payment.Outcome, error)
}

// IDGenerator mints attempt identifiers.
type IDGenerator interface {
	NewID() string
}

type PlaceOrderInput struct {
	Notes           string
	PaymentMethodID int64
	WalletPhone     string
	Currency        string
}

type PlaceOrderResult struct {
	AttemptID        string
	OrderID          string
	OrderNumber      string
	Total            decimal.Decimal
	RedirectRequired bool
	RedirectURL      string
	Message          string
}

// Orchestrator drives one checkout attempt through its stages:
// stock check, cart commit, address confirmation, order creation, payment.
// No stage auto-retries; every failure resolves to a single typed
// checkout.Failure and the chain restarts from the beginning or not at all.
type Orchestrator struct {
	stock     StockChecker
	gate      *Gate
	addresses AddressSource
	cart      CartRestorer
	orders    OrderService
	payments  PaymentService
	publisher outbox.Publisher
	ids       IDGenerator
	tel       observability.Observability

	// dialPrefix is the market prefix used when rewriting locally-formatted
	// wallet numbers to E.164.
	dialPrefix string

	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
	stageCounter observability.Counter

	inFlight atomic.Bool
}

func NewOrchestrator(
	stockChecker StockChecker,
	gate *Gate,
	addresses AddressSource,
	cartRestorer CartRestorer,
	orders OrderService,
	payments PaymentService,
	publisher outbox.Publisher,
	ids IDGenerator,
	dialPrefix string,
	tel observability.Observability,
) *Orchestrator {
	if dialPrefix == "" {
		dialPrefix = payment.DefaultDialPrefix
	}
	baseLog := observability.NopLogger()
	metricsProvider := observability.NopMetrics()
	if tel != nil {
		baseLog = tel.Logger()
		metricsProvider = tel.Metrics()
	}
	if tel == nil {
		tel = noopObservability{}
	}

	return &Orchestrator{
		stock:        stockChecker,
		gate:         gate,
		addresses:    addresses,
		cart:         cartRestorer,
		orders:       orders,
		payments:     payments,
		publisher:    publisher,
		ids:          ids,
		dialPrefix:   dialPrefix,
		tel:          tel,
		log:          baseLog.With(observability.F("component", "order_orchestrator")),
		reqCounter:   metricsProvider.Counter(observability.MUsecaseRequests),
		durHistogram: metricsProvider.Histogram(observability.MUsecaseDuration),
		stageCounter: metricsProvider.Counter(observability.MCheckoutStages),
	}
}

var _ application.UseCase[PlaceOrderInput, *PlaceOrderResult] = (*Orchestrator)(nil)

// Execute runs one full checkout attempt. A second call while one attempt is
// still in flight returns checkout.ErrAttemptInFlight instead of racing: the
// cart snapshot is owned by exactly one attempt at a time.
func (o *Orchestrator) Execute(ctx context.Context, cmd PlaceOrderInput) (_ *PlaceOrderResult, err error) {
	if !o.inFlight.CompareAndSwap(false, true) {
		return nil, checkout.ErrAttemptInFlight
	}
	defer o.inFlight.Store(false)

	attemptID := o.ids.NewID()
	logger := logctx.FromOr(ctx, o.log).With(
		observability.F("use_case", useCasePlaceOrder),
		observability.F("attempt_id", attemptID),
	)
	ctx = logctx.With(ctx, logger)

	ctx, span := o.tel.Tracer().Start(ctx, spanPrefix+"PlaceOrder",
		attribute.String("use_case", useCasePlaceOrder),
		attribute.String("checkout.attempt_id", attemptID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"

	defer func() {
		lat := time.Since(start).Seconds()

		if span != nil {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, statusText)
			} else {
				span.SetStatus(codes.Ok, statusText)
			}
			span.End()
		}

		o.reqCounter.Add(1,
			observability.L("use_case", useCasePlaceOrder),
			observability.L("outcome", outcome),
		)
		o.durHistogram.Observe(lat,
			observability.L("use_case", useCasePlaceOrder),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	// Stage 1: stock. The snapshot taken here is owned by this attempt for
	// the remainder of the flow.
	snapshot := o.cart.Snapshot()
	if snapshot.Empty() {
		outcome, statusText = "error", "CART_EMPTY"
		return nil, o.fail(checkout.StageStock, "cart-empty", errors.New("cart has no lines"))
	}
	if ferr := o.runStage(ctx, checkout.StageStock, func(ctx context.Context) error {
		return o.stock.CheckAvailability(ctx, snapshot)
	}); ferr != nil {
		outcome, statusText = "error", "STOCK_CHECK_FAILED"
		var short *stock.InsufficientStockError
		if errors.As(ferr, &short) {
			return nil, o.fail(checkout.StageStock, shortageReason(short), ferr)
		}
		return nil, o.fail(checkout.StageStock, "stock-check-failed", ferr)
	}

	// Stage 2: commit. Idempotent while the commit is still valid.
	if ferr := o.runStage(ctx, checkout.StageCheckout, o.gate.Commit); ferr != nil {
		outcome, statusText = "error", "CHECKOUT_COMMIT_FAILED"
		return nil, o.fail(checkout.StageCheckout, "commit-failed", ferr)
	}

	// Stage 3: address.
	addr, aerr := o.addresses.SelectedOrFail()
	if aerr != nil {
		outcome, statusText = "error", "ADDRESS_REJECTED"
		o.countStage(checkout.StageAddress, "error")
		return nil, o.fail(checkout.StageAddress, addressReason(aerr), aerr)
	}
	o.countStage(checkout.StageAddress, "success")

	// Stage 4: order creation. Only permitted while the commit is valid.
	var handle checkout.OrderHandle
	if ferr := o.runStage(ctx, checkout.StageOrder, func(ctx context.Context) error {
		if gerr := o.gate.RequireCompleted(); gerr != nil {
			return gerr
		}
		created, cerr := o.orders.Create(ctx, addr.ID, cmd.Notes, cmd.PaymentMethodID)
		if cerr != nil {
			return cerr
		}
		handle = created
		return nil
	}); ferr != nil {
		outcome, statusText = "error", "ORDER_CREATE_FAILED"
		o.compensate(ctx, snapshot)
		switch {
		case errors.Is(ferr, checkout.ErrNotCheckedOut):
			return nil, o.fail(checkout.StageOrder, checkout.ReasonNotCheckedOut, ferr)
		case isOrderIDMissing(ferr):
			statusText = "ORDER_ID_MISSING"
			return nil, o.fail(checkout.StageOrder, checkout.ReasonIDMissing, ferr)
		default:
			return nil, o.fail(checkout.StageOrder, "create-failed", ferr)
		}
	}

	span.SetAttributes(attribute.String("order.id", handle.OrderID))
	if o.publisher != nil {
		_ = o.publisher.Publish(ctx, checkout.OrderCreatedEvent{
			OrderID:     handle.OrderID,
			OrderNumber: handle.OrderNumber,
			At:          time.Now().UTC(),
		})
	}

	// Stage 5: payment. Normalization happens before any network call; the
	// order is re-verified by a read-back rather than blindly retried.
	var result payment.Outcome
	if ferr := o.runStage(ctx, checkout.StagePayment, func(ctx context.Context) error {
		req, perr := payment.NewRequestForMarket(handle.OrderID, cmd.WalletPhone, cmd.Currency, cmd.PaymentMethodID, cmd.Notes, o.dialPrefix)
		if perr != nil {
			return perr
		}

		exists, verr := o.orders.Exists(ctx, handle.OrderID)
		if verr != nil {
			return verr
		}
		if !exists {
			return checkout.Fail(checkout.StagePayment, checkout.ReasonOrderNotFound, nil)
		}

		paid, payErr := o.payments.Pay(ctx, req)
		if payErr != nil {
			return payErr
		}
		result = paid
		return nil
	}); ferr != nil {
		outcome, statusText = "error", "PAYMENT_FAILED"
		o.compensate(ctx, snapshot)
		var failure *checkout.Failure
		if errors.As(ferr, &failure) {
			statusText = "ORDER_NOT_FOUND"
			return nil, failure
		}
		if errors.Is(ferr, payment.ErrInvalidPhone) || errors.Is(ferr, payment.ErrInvalidCurrency) {
			statusText = "PAYMENT_VALIDATION_FAILED"
			return nil, o.fail(checkout.StagePayment, "invalid-payment-details", ferr)
		}
		return nil, o.fail(checkout.StagePayment, "submit-failed", ferr)
	}

	if o.publisher != nil {
		_ = o.publisher.Publish(ctx, checkout.PaymentSubmittedEvent{
			OrderID:          handle.OrderID,
			RedirectRequired: result.RedirectRequired,
			At:               time.Now().UTC(),
		})
	}
	if result.RedirectRequired {
		statusText = "REDIRECT_REQUIRED"
	}

	return &PlaceOrderResult{
		AttemptID:        attemptID,
		OrderID:          handle.OrderID,
		OrderNumber:      handle.OrderNumber,
		Total:            snapshot.Subtotal(),
		RedirectRequired: result.RedirectRequired,
		RedirectURL:      result.RedirectURL,
		Message:          result.Message,
	}, nil
}

// runStage wraps one pipeline step with a child span and a stage counter.
func (o *Orchestrator) runStage(ctx context.Context, stage checkout.Stage, fn func(ctx context.Context) error) error {
	ctx, span := o.tel.Tracer().Start(ctx, "stage."+string(stage),
		attribute.String("checkout.stage", string(stage)),
	)
	err := fn(ctx)
	if span != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(stage))
		} else {
			span.SetStatus(codes.Ok, "OK")
		}
		span.End()
	}
	if err != nil {
		o.countStage(stage, "error")
		return err
	}
	o.countStage(stage, "success")
	return nil
}

func (o *Orchestrator) countStage(stage checkout.Stage, outcome string) {
	o.stageCounter.Add(1,
		observability.L("stage", string(stage)),
		observability.L("outcome", outcome),
	)
}

func (o *Orchestrator) fail(stage checkout.Stage, reason string, err error) *checkout.Failure {
	return checkout.Fail(stage, reason, err)
}

// compensate restores the remote cart from the attempt-owned snapshot after a
// post-commit failure. The remote services offer no transactional rollback;
// this is the explicit best-effort compensation the flow actually guarantees.
func (o *Orchestrator) compensate(ctx context.Context, snapshot domcart.Snapshot) {
	restored, err := o.cart.Restore(context.WithoutCancel(ctx), snapshot)
	logger := logctx.FromOr(ctx, o.log)
	if err != nil {
		logger.Warn("cart_compensation_failed", observability.F("error", err.Error()))
		return
	}
	logger.Info("cart_compensated", observability.F("lines_restored", restored))
}

func shortageReason(e *stock.InsufficientStockError) string {
	return fmt.Sprintf("available=%d, requested=%d", e.Available, e.Requested)
}

func addressReason(err error) string {
	var missing *domaddr.MissingFieldsError
	if errors.As(err, &missing) {
		return "missing-fields: " + strings.Join(missing.Fields, ", ")
	}
	if errors.Is(err, domaddr.ErrNoneSelected) {
		return "no-address-selected"
	}
	return "address-invalid"
}

func isOrderIDMissing(err error) bool {
	return errors.Is(err, checkout.ErrOrderIDMissing)
}

type noopObservability struct{}

func (noopObservability) Tracer() observability.Tracer   { return observability.NopTracer() }
func (noopObservability) Logger() observability.Logger   { return observability.NopLogger() }
func (noopObservability) Metrics() observability.Metrics { return observability.NopMetrics() }
