package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nileshop/checkout/internal/observability"
	"github.com/nileshop/checkout/internal/observability/logctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const maxResponseBytes = 1 << 20

// Client is the shared transport for all collaborator calls: one base URL per
// peer, envelope decoding, and per-endpoint instrumentation (span plus
// external request counter and duration).
type Client struct {
	baseURL string
	peer    string
	http    *http.Client
	token   func() string

	log          observability.Logger
	tracer       observability.Tracer
	extCounter   observability.Counter
	extHistogram observability.Histogram
}

// NewClient builds a collaborator client. tokenFn supplies the session auth
// token per call and may be nil for unauthenticated collaborators.
func NewClient(baseURL, peer string, httpClient *http.Client, tel observability.Observability, tokenFn func() string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	logger := observability.NopLogger()
	tracer := observability.NopTracer()
	metrics := observability.NopMetrics()
	if tel != nil {
		logger = tel.Logger()
		tracer = tel.Tracer()
		metrics = tel.Metrics()
	}

	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		peer:         peer,
		http:         httpClient,
		token:        tokenFn,
		log:          logger.With(observability.F("component", "rest_client"), observability.F("peer", peer)),
		tracer:       tracer,
		extCounter:   metrics.Counter(observability.MExternalRequests),
		extHistogram: metrics.Histogram(observability.MExternalRequestDuration),
	}
}

// call performs one collaborator round-trip and returns the decoded envelope
// plus the full raw body for callers that need to scan heterogeneous shapes.
func (c *Client) call(ctx context.Context, method, endpoint, path string, body any) (_ *Envelope, _ []byte, err error) {
	ctx, span := c.tracer.Start(ctx, "collab."+c.peer+"."+endpoint,
		attribute.String("peer", c.peer),
		attribute.String("endpoint", endpoint),
		attribute.String("http.method", method),
	)
	start := time.Now()
	outcome := "success"

	defer func() {
		if span != nil {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, outcome)
			} else {
				span.SetStatus(codes.Ok, "OK")
			}
			span.End()
		}
		if c.extCounter != nil {
			c.extCounter.Add(1,
				observability.L("peer", c.peer),
				observability.L("endpoint", endpoint),
				observability.L("outcome", outcome),
			)
		}
		if c.extHistogram != nil {
			c.extHistogram.Observe(time.Since(start).Seconds(),
				observability.L("peer", c.peer),
				observability.L("endpoint", endpoint),
			)
		}
	}()

	var payload io.Reader
	if body != nil {
		raw, merr := json.Marshal(body)
		if merr != nil {
			outcome = "error"
			return nil, nil, fmt.Errorf("rest: encode %s request: %w", endpoint, merr)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		outcome = "error"
		return nil, nil, fmt.Errorf("rest: build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		outcome = "network_error"
		logctx.FromOr(ctx, c.log).Warn("collaborator_unreachable",
			observability.F("endpoint", endpoint),
			observability.F("error", err.Error()),
		)
		return nil, nil, fmt.Errorf("%w: %s %s: %v", ErrNetwork, c.peer, endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		outcome = "network_error"
		return nil, nil, fmt.Errorf("%w: %s %s: read body: %v", ErrNetwork, c.peer, endpoint, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		outcome = "not_found"
		return nil, rawBody, fmt.Errorf("%w: %s %s", ErrNotFound, c.peer, endpoint)
	}

	var env Envelope
	if derr := json.Unmarshal(rawBody, &env); derr != nil || !hasStatusKey(rawBody) {
		// No envelope at all; a decodable body without a status key is a raw
		// payload, not an envelope whose status happens to be zero. Fall
		// back to the transport status either way.
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return &Envelope{Status: StatusCode(resp.StatusCode), Data: rawBody}, rawBody, nil
		}
		outcome = "error"
		return nil, rawBody, &UpstreamError{Peer: c.peer, Endpoint: endpoint, Status: resp.StatusCode}
	}

	if !env.Status.IsSuccess() {
		if int(env.Status) == http.StatusNotFound {
			outcome = "not_found"
			return &env, rawBody, fmt.Errorf("%w: %s %s", ErrNotFound, c.peer, endpoint)
		}
		outcome = "error"
		return &env, rawBody, &UpstreamError{Peer: c.peer, Endpoint: endpoint, Status: int(env.Status), Message: env.Message}
	}

	return &env, rawBody, nil
}

// hasStatusKey reports whether the body carries an explicit top-level status
// field; its absence marks a non-enveloped response.
func hasStatusKey(rawBody []byte) bool {
	var probe struct {
		Status json.RawMessage `json:"status"`
	}
	if err := json.Unmarshal(rawBody, &probe); err != nil {
		return false
	}
	return probe.Status != nil
}

// do runs a call and unmarshals the envelope payload into out when provided.
func (c *Client) do(ctx context.Context, method, endpoint, path string, body, out any) error {
	env, _, err := c.call(ctx, method, endpoint, path, body)
	if err != nil {
		return err
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("rest: decode %s payload: %w", endpoint, err)
	}
	return nil
}
