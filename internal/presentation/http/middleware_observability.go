package httppresentation

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/nileshop/checkout/internal/observability"
	"github.com/nileshop/checkout/internal/observability/logctx"
)

// ObservabilityMiddleware combines:
// - W3C Trace Context extraction
// - request-scoped logger injection (dynamic fields only)
// - X-Request-ID generation + echo
// - HTTP metrics (counter + histogram) with low-cardinality labels
func ObservabilityMiddleware(
	base observability.Logger,
	requestID func(*http.Request) string,
	tel observability.Observability,
) func(http.Handler) http.Handler {
	if base == nil && tel != nil {
		base = tel.Logger()
	}
	if base == nil {
		base = observability.NopLogger()
	}
	prop := otel.GetTextMapPropagator() // W3C by default

	var (
		requests  observability.Counter
		durations observability.Histogram
	)
	if tel != nil {
		requests = tel.Metrics().Counter(observability.MHTTPRequests)
		durations = tel.Metrics().Histogram(observability.MHTTPRequestDuration)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			sc := trace.SpanContextFromContext(ctx)

			rid := ""
			if requestID != nil {
				rid = requestID(r)
			}
			if rid == "" {
				rid = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", rid)

			fields := []observability.Field{observability.F("request_id", rid)}
			if sc.IsValid() {
				fields = append(fields,
					observability.F("trace_id", sc.TraceID().String()),
					observability.F("span_id", sc.SpanID().String()),
				)
			}
			reqLogger := base.With(fields...)
			ctx = logctx.With(ctx, reqLogger)

			start := time.Now()
			lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(lrw, r.WithContext(ctx))

			route := routeFromContext(ctx)
			statusLabel := strconv.Itoa(lrw.status)

			if requests != nil {
				requests.Add(1,
					observability.L("method", r.Method),
					observability.L("route", route),
					observability.L("status", statusLabel),
				)
			}
			if durations != nil {
				durations.Observe(time.Since(start).Seconds(),
					observability.L("method", r.Method),
					observability.L("route", route),
					observability.L("status", statusLabel),
				)
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
