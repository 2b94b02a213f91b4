package cart

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	domcart "github.com/nileshop/checkout/internal/domain/cart"
	"github.com/nileshop/checkout/internal/domain/checkout"
	"github.com/nileshop/checkout/internal/domain/outbox"
	"github.com/nileshop/checkout/internal/observability"
	"github.com/nileshop/checkout/internal/observability/logctx"
)

// RemoteCart is the slice of the inventory/cart collaborator the coordinator
// needs. Note the deliberate absence of a remove operation: the upstream
// contract has no confirmed remove-item endpoint.
type RemoteCart interface {
	AddItem(ctx context.Context, productID, variantID int64, quantity int) error
	Fetch(ctx context.Context) (domcart.Snapshot, error)
}

// AddResult reports a local add together with whether the remote cart
// accepted it. A failed remote call is a warning, not a rollback: local state
// stays ahead for responsiveness, and replay reconciles later.
type AddResult struct {
	Line         domcart.Line
	RemoteSynced bool
	RemoteErr    error
}

// Coordinator owns the client-visible cart. It is bound to one session and
// one logical flow; concurrent use is not supported and not synchronized,
// matching the single-flow ownership contract of the checkout attempt.
type Coordinator struct {
	lines []domcart.Line
	index map[domcart.Key]int

	remote    RemoteCart
	publisher outbox.Publisher
	log       observability.Logger

	syncFailures observability.Counter
	replayLines  observability.Counter

	// onMutate fires after any local cart change so the checkout gate can
	// invalidate a completed commit.
	onMutate func()
}

func NewCoordinator(remote RemoteCart, publisher outbox.Publisher, tel observability.Observability) *Coordinator {
	logger := observability.NopLogger()
	metrics := observability.NopMetrics()
	if tel != nil {
		logger = tel.Logger()
		metrics = tel.Metrics()
	}
	return &Coordinator{
		index:        make(map[domcart.Key]int),
		remote:       remote,
		publisher:    publisher,
		log:          logger.With(observability.F("component", "cart_coordinator")),
		syncFailures: metrics.Counter(observability.MCartSyncFailures),
		replayLines:  metrics.Counter(observability.MCartReplayLines),
	}
}

// OnMutate registers the hook fired after every local cart change.
func (c *Coordinator) OnMutate(fn func()) { c.onMutate = fn }

// AddLine validates and stores a new line, then pushes it to the remote cart
// best-effort. A duplicate (product, variant) pair is rejected before any
// network call.
func (c *Coordinator) AddLine(ctx context.Context, productID, variantID int64, productName string, quantity int, unitPrice decimal.Decimal) (AddResult, error) {
	logger := logctx.FromOr(ctx, c.log)

	line, err := domcart.NewLine(productID, variantID, productName, quantity, unitPrice)
	if err != nil {
		return AddResult{}, err
	}
	if _, exists := c.index[line.Key()]; exists {
		return AddResult{}, domcart.ErrAlreadyInCart
	}

	c.index[line.Key()] = len(c.lines)
	c.lines = append(c.lines, line)
	c.mutated()

	result := AddResult{Line: line, RemoteSynced: true}
	if err := c.remote.AddItem(ctx, productID, variantID, quantity); err != nil {
		result.RemoteSynced = false
		result.RemoteErr = err
		c.syncFailures.Add(1, observability.L("operation", "add"))
		logger.Warn("cart_remote_add_failed",
			observability.F("product_id", productID),
			observability.F("variant_id", variantID),
			observability.F("error", err.Error()),
		)
	}

	if c.publisher != nil {
		_ = c.publisher.Publish(ctx, checkout.CartLineAddedEvent{
			ProductID:    productID,
			VariantID:    variantID,
			Quantity:     quantity,
			RemoteSynced: result.RemoteSynced,
			At:           time.Now().UTC(),
		})
	}
	return result, nil
}

// RemoveLine removes a line locally. The upstream contract exposes no remote
// removal, so the remote cart is left as-is; this is a known gap surfaced in
// logs rather than hidden.
func (c *Coordinator) RemoveLine(ctx context.Context, productID, variantID int64) error {
	key := domcart.Key{ProductID: productID, VariantID: variantID}
	pos, exists := c.index[key]
	if !exists {
		return domcart.ErrLineNotFound
	}

	c.lines = append(c.lines[:pos], c.lines[pos+1:]...)
	delete(c.index, key)
	for i := pos; i < len(c.lines); i++ {
		c.index[c.lines[i].Key()] = i
	}
	c.mutated()

	logctx.FromOr(ctx, c.log).Warn("cart_remove_local_only",
		observability.F("product_id", productID),
		observability.F("variant_id", variantID),
	)
	return nil
}

// Snapshot copies the current local lines for exclusive use by one checkout
// attempt.
func (c *Coordinator) Snapshot() domcart.Snapshot {
	return domcart.NewSnapshot(c.lines)
}

// Replay re-adds every snapshot line to the remote cart, tolerating
// individual failures and continuing. It returns how many lines the remote
// accepted; partial replay is acceptable.
func (c *Coordinator) Replay(ctx context.Context, snapshot domcart.Snapshot) (int, error) {
	logger := logctx.FromOr(ctx, c.log)

	replayed := 0
	for _, line := range snapshot.Lines {
		if err := ctx.Err(); err != nil {
			return replayed, err
		}
		if err := c.remote.AddItem(ctx, line.ProductID, line.VariantID, line.Quantity); err != nil {
			c.replayLines.Add(1, observability.L("outcome", "error"))
			logger.Warn("cart_replay_line_failed",
				observability.F("product_id", line.ProductID),
				observability.F("variant_id", line.VariantID),
				observability.F("error", err.Error()),
			)
			continue
		}
		c.replayLines.Add(1, observability.L("outcome", "success"))
		replayed++
	}

	if replayed < snapshot.Len() {
		logger.Warn("cart_replay_partial",
			observability.F("replayed", replayed),
			observability.F("total", snapshot.Len()),
		)
	}

	if c.publisher != nil {
		_ = c.publisher.Publish(ctx, checkout.CartRestoredEvent{
			LinesReplayed: replayed,
			LinesTotal:    snapshot.Len(),
			At:            time.Now().UTC(),
		})
	}
	return replayed, nil
}

// FetchRemote pulls the authoritative remote cart, used to verify a replay
// actually landed.
func (c *Coordinator) FetchRemote(ctx context.Context) (domcart.Snapshot, error) {
	return c.remote.Fetch(ctx)
}

// Restore is the compensation path: it re-populates the remote cart from the
// snapshot, skipping lines the remote already has. When the remote cart
// cannot be read, it falls back to a full replay.
func (c *Coordinator) Restore(ctx context.Context, snapshot domcart.Snapshot) (int, error) {
	remote, err := c.remote.Fetch(ctx)
	if err != nil {
		logctx.FromOr(ctx, c.log).Warn("cart_restore_fetch_failed",
			observability.F("error", err.Error()),
		)
		return c.Replay(ctx, snapshot)
	}

	missing := make([]domcart.Line, 0, snapshot.Len())
	for _, line := range snapshot.Lines {
		if _, found := remote.Find(line.ProductID, line.VariantID); !found {
			missing = append(missing, line)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}
	return c.Replay(ctx, domcart.NewSnapshot(missing))
}

// Lines exposes the current local cart contents in insertion order.
func (c *Coordinator) Lines() []domcart.Line {
	out := make([]domcart.Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Coordinator) mutated() {
	if c.onMutate != nil {
		c.onMutate()
	}
}
