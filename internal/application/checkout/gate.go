package checkout

import (
	"context"
	"fmt"
	"time"

	domcart "github.com/nileshop/checkout/internal/domain/cart"
	"github.com/nileshop/checkout/internal/domain/checkout"
	"github.com/nileshop/checkout/internal/domain/outbox"
	"github.com/nileshop/checkout/internal/observability"
	"github.com/nileshop/checkout/internal/observability/logctx"
)

// CartCommitter runs the remote checkout operation. Committing reserves
// stock for every cart line and empties the remote cart as a side effect.
type CartCommitter interface {
	Commit(ctx context.Context) error
}

// CartSource is the slice of the cart coordinator the gate needs: the
// pre-commit snapshot and the replay that counteracts the remote clear.
type CartSource interface {
	Snapshot() domcart.Snapshot
	Replay(ctx context.Context, snapshot domcart.Snapshot) (int, error)
}

// Gate tracks whether checkout has completed. It is invalidated whenever the
// cart mutates after a completed commit, forcing a re-commit before order
// creation. Like the coordinator it belongs to a single session flow and is
// not synchronized.
type Gate struct {
	remote    CartCommitter
	cart      CartSource
	publisher outbox.Publisher
	log       observability.Logger

	state    checkout.State
	snapshot domcart.Snapshot
}

func NewGate(remote CartCommitter, cart CartSource, publisher outbox.Publisher, logger observability.Logger) *Gate {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Gate{
		remote:    remote,
		cart:      cart,
		publisher: publisher,
		log:       logger.With(observability.F("component", "checkout_gate")),
		state:     checkout.NewState(),
	}
}

// Commit runs the remote checkout once. Repeated calls while the commit is
// still valid are no-ops returning the cached success; a mutated cart forces
// a fresh commit. On success the pre-commit snapshot is immediately replayed
// because the remote commit emptied the remote cart and downstream order
// creation depends on it being populated again.
func (g *Gate) Commit(ctx context.Context) error {
	logger := logctx.FromOr(ctx, g.log)

	if g.state.Status() == checkout.StatusCompleted {
		logger.Debug("checkout_commit_cached")
		return nil
	}

	snapshot := g.cart.Snapshot()

	next, err := g.state.OnCommitStarted()
	if err != nil {
		return fmt.Errorf("checkout: commit from %s: %w", g.state.Status(), err)
	}
	g.state = next

	logger.Info("checkout_commit_start", observability.F("lines", snapshot.Len()))

	if err := g.remote.Commit(ctx); err != nil {
		if reverted, serr := g.state.OnCommitFailed(); serr == nil {
			g.state = reverted
		}
		logger.Error("checkout_commit_failed", observability.F("error", err.Error()))
		return fmt.Errorf("checkout: commit: %w", err)
	}

	next, err = g.state.OnCommitSucceeded()
	if err != nil {
		return fmt.Errorf("checkout: commit success from %s: %w", g.state.Status(), err)
	}
	g.state = next
	g.snapshot = snapshot

	if g.publisher != nil {
		_ = g.publisher.Publish(ctx, checkout.CheckoutCommittedEvent{
			Lines: snapshot.Len(),
			At:    time.Now().UTC(),
		})
	}

	// The remote commit cleared the remote cart; replay the snapshot so the
	// order collaborator still sees a populated cart. Replay failures are
	// logged but never revert a completed commit.
	if replayed, rerr := g.cart.Replay(ctx, snapshot); rerr != nil || replayed < snapshot.Len() {
		logger.Warn("checkout_post_commit_replay_incomplete",
			observability.F("replayed", replayed),
			observability.F("total", snapshot.Len()),
		)
	}

	logger.Info("checkout_commit_done", observability.F("lines", snapshot.Len()))
	return nil
}

// Invalidate marks a completed commit as stale after a cart mutation. It is
// harmless in every other state.
func (g *Gate) Invalidate() {
	if next, err := g.state.OnCartMutated(); err == nil {
		g.state = next
	}
}

// Status reports the current lifecycle state.
func (g *Gate) Status() checkout.Status { return g.state.Status() }

// RequireCompleted guards order creation: it fails unless a commit is
// currently valid.
func (g *Gate) RequireCompleted() error {
	if g.state.Status() != checkout.StatusCompleted {
		return checkout.ErrNotCheckedOut
	}
	return nil
}

// CommittedSnapshot returns the pre-commit snapshot of the last completed
// commit, owned by the in-flight orchestration for compensation.
func (g *Gate) CommittedSnapshot() domcart.Snapshot { return g.snapshot }
