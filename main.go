package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	appaddress "github.com/nileshop/checkout/internal/application/address"
	appcart "github.com/nileshop/checkout/internal/application/cart"
	appcheckout "github.com/nileshop/checkout/internal/application/checkout"
	appstock "github.com/nileshop/checkout/internal/application/stock"
	domcheckout "github.com/nileshop/checkout/internal/domain/checkout"
	domoutbox "github.com/nileshop/checkout/internal/domain/outbox"
	"github.com/nileshop/checkout/internal/infrastructure/config"
	"github.com/nileshop/checkout/internal/infrastructure/id"
	"github.com/nileshop/checkout/internal/infrastructure/memory"
	"github.com/nileshop/checkout/internal/infrastructure/observability/oteltrace"
	"github.com/nileshop/checkout/internal/infrastructure/observability/prometrics"
	"github.com/nileshop/checkout/internal/infrastructure/observability/telemetry"
	"github.com/nileshop/checkout/internal/infrastructure/observability/zaplogger"
	"github.com/nileshop/checkout/internal/infrastructure/outbox"
	"github.com/nileshop/checkout/internal/infrastructure/rest"
	"github.com/nileshop/checkout/internal/observability"
	"github.com/nileshop/checkout/internal/pkg/logging"
	httppresentation "github.com/nileshop/checkout/internal/presentation/http"
	"github.com/nileshop/checkout/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	baseLogger := logging.MustNewLogger(cfg.ServiceName, cfg.Env)
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := zaplogger.Wrap(baseLogger)

	reg := prometrics.New("", "")
	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: reg.Counter(
			string(observability.MUsecaseRequests),
			"Total number of use case invocations.",
			"use_case", "outcome",
		),
		observability.MExternalRequests: reg.Counter(
			string(observability.MExternalRequests),
			"Collaborator calls by peer and endpoint.",
			"peer", "endpoint", "outcome",
		),
		observability.MHTTPRequests: reg.Counter(
			string(observability.MHTTPRequests),
			"HTTP requests served.",
			"method", "route", "status",
		),
		observability.MCheckoutStages: reg.Counter(
			string(observability.MCheckoutStages),
			"Checkout pipeline stage outcomes.",
			"stage", "outcome",
		),
		observability.MCartReplayLines: reg.Counter(
			string(observability.MCartReplayLines),
			"Cart lines replayed to the remote cart.",
			"outcome",
		),
		observability.MCartSyncFailures: reg.Counter(
			string(observability.MCartSyncFailures),
			"Local cart operations the remote cart did not accept.",
			"operation",
		),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: reg.Histogram(
			string(observability.MUsecaseDuration),
			"Duration of use case execution in seconds.",
			prometheus.DefBuckets,
			"use_case",
		),
		observability.MExternalRequestDuration: reg.Histogram(
			string(observability.MExternalRequestDuration),
			"Collaborator round-trip duration in seconds.",
			prometheus.DefBuckets,
			"peer", "endpoint",
		),
		observability.MHTTPRequestDuration: reg.Histogram(
			string(observability.MHTTPRequestDuration),
			"HTTP request duration in seconds.",
			prometheus.DefBuckets,
			"method", "route", "status",
		),
	}

	tel := telemetry.New(
		oteltrace.New(cfg.ServiceName),
		systemLogger,
		counters,
		histograms,
	)

	bus := outbox.NewBus(systemLogger)
	bus.Start(context.Background())
	defer bus.Stop(context.Background())
	subscribeAuditLog(bus, systemLogger)

	httpClient := &http.Client{Timeout: cfg.CollaboratorTimeout}
	quantityCache := memory.NewQuantityCache()
	idGenerator := id.NewUUIDGenerator()

	factory := func(token string) *session.Session {
		tokenFn := func() string { return token }

		inventoryClient := rest.NewInventoryClient(cfg.InventoryBaseURL, httpClient, tel, tokenFn)
		cartClient := rest.NewCartClient(cfg.InventoryBaseURL, httpClient, tel, tokenFn)
		addressClient := rest.NewAddressClient(cfg.AddressBaseURL, httpClient, tel, tokenFn)
		orderClient := rest.NewOrderClient(cfg.OrderBaseURL, httpClient, tel, tokenFn)
		paymentClient := rest.NewPaymentClient(cfg.PaymentBaseURL, httpClient, tel, tokenFn)

		coordinator := appcart.NewCoordinator(cartClient, bus, tel)
		gate := appcheckout.NewGate(cartClient, coordinator, bus, tel.Logger())
		coordinator.OnMutate(gate.Invalidate)
		selector := appaddress.NewSelector(addressClient, tel.Logger())
		validator := appstock.NewValidator(inventoryClient, quantityCache, tel.Logger())

		orchestrator := appcheckout.NewOrchestrator(
			validator,
			gate,
			selector,
			coordinator,
			orderClient,
			paymentClient,
			bus,
			idGenerator,
			cfg.MarketDialPrefix,
			tel,
		)

		return &session.Session{
			Token:        token,
			Cart:         coordinator,
			Gate:         gate,
			Addresses:    selector,
			Orchestrator: orchestrator,
		}
	}

	sessions := session.NewManager(factory, systemLogger)
	handler := httppresentation.NewHandler(sessions, systemLogger, tel)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		systemLogger.Info("http_server_start",
			observability.F("addr", server.Addr),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error",
				observability.F("error", err.Error()),
			)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error",
			observability.F("error", err.Error()),
		)
	} else {
		systemLogger.Info("http_server_stopped")
	}
}

// subscribeAuditLog keeps a structured trail of the checkout lifecycle.
func subscribeAuditLog(bus *outbox.Bus, logger observability.Logger) {
	audit := logger.With(observability.F("component", "checkout_audit"))
	for _, name := range []string{
		domcheckout.EventCartLineAdded,
		domcheckout.EventCartRestored,
		domcheckout.EventCheckoutCommitted,
		domcheckout.EventOrderCreated,
		domcheckout.EventPaymentSubmitted,
	} {
		bus.Subscribe(name, func(_ context.Context, e domoutbox.Event) error {
			audit.Info("checkout_event", observability.F("event", e.EventName()))
			return nil
		})
	}
}
