package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	appcart "github.com/nileshop/checkout/internal/application/cart"
	domcart "github.com/nileshop/checkout/internal/domain/cart"
	"github.com/nileshop/checkout/internal/domain/checkout"
)

type fakeCommitter struct {
	calls int
	err   error
}

func (f *fakeCommitter) Commit(context.Context) error {
	f.calls++
	return f.err
}

type fakeCartSource struct {
	snap        domcart.Snapshot
	replayCalls int
	replayErr   error
}

func (f *fakeCartSource) Snapshot() domcart.Snapshot { return f.snap }

func (f *fakeCartSource) Replay(_ context.Context, snapshot domcart.Snapshot) (int, error) {
	f.replayCalls++
	if f.replayErr != nil {
		return 0, f.replayErr
	}
	return snapshot.Len(), nil
}

func snapshotWithOneLine(t *testing.T) domcart.Snapshot {
	t.Helper()
	line, err := domcart.NewLine(10, 20, "tee", 2, decimal.NewFromInt(50))
	require.NoError(t, err)
	return domcart.NewSnapshot([]domcart.Line{line})
}

func TestCommitIsIdempotentWhileValid(t *testing.T) {
	t.Parallel()

	committer := &fakeCommitter{}
	source := &fakeCartSource{snap: snapshotWithOneLine(t)}
	g := NewGate(committer, source, nil, nil)

	require.NoError(t, g.Commit(context.Background()))
	require.NoError(t, g.Commit(context.Background()))
	require.NoError(t, g.Commit(context.Background()))

	require.Equal(t, 1, committer.calls)
	require.Equal(t, checkout.StatusCompleted, g.Status())
	require.NoError(t, g.RequireCompleted())
	require.Equal(t, 1, source.snap.Len())
	require.Equal(t, 1, g.CommittedSnapshot().Len())
}

func TestCommitReplaysSnapshotAfterSuccess(t *testing.T) {
	t.Parallel()

	source := &fakeCartSource{snap: snapshotWithOneLine(t)}
	g := NewGate(&fakeCommitter{}, source, nil, nil)

	require.NoError(t, g.Commit(context.Background()))
	require.Equal(t, 1, source.replayCalls)
}

func TestCommitFailureRevertsState(t *testing.T) {
	t.Parallel()

	remoteErr := errors.New("reserve failed")
	committer := &fakeCommitter{err: remoteErr}
	source := &fakeCartSource{snap: snapshotWithOneLine(t)}
	g := NewGate(committer, source, nil, nil)

	err := g.Commit(context.Background())
	require.ErrorIs(t, err, remoteErr)
	require.Equal(t, checkout.StatusNotStarted, g.Status())
	require.ErrorIs(t, g.RequireCompleted(), checkout.ErrNotCheckedOut)
	require.Equal(t, 0, source.replayCalls)

	// A later attempt can succeed from the reverted state.
	committer.err = nil
	require.NoError(t, g.Commit(context.Background()))
	require.Equal(t, checkout.StatusCompleted, g.Status())
}

func TestReplayFailureDoesNotRevertCommit(t *testing.T) {
	t.Parallel()

	source := &fakeCartSource{snap: snapshotWithOneLine(t), replayErr: errors.New("cart down")}
	g := NewGate(&fakeCommitter{}, source, nil, nil)

	require.NoError(t, g.Commit(context.Background()))
	require.Equal(t, checkout.StatusCompleted, g.Status())
}

func TestInvalidateForcesRecommit(t *testing.T) {
	t.Parallel()

	committer := &fakeCommitter{}
	g := NewGate(committer, &fakeCartSource{snap: snapshotWithOneLine(t)}, nil, nil)

	require.NoError(t, g.Commit(context.Background()))
	require.Equal(t, 1, committer.calls)

	g.Invalidate()
	require.Equal(t, checkout.StatusInvalidated, g.Status())
	require.ErrorIs(t, g.RequireCompleted(), checkout.ErrNotCheckedOut)

	require.NoError(t, g.Commit(context.Background()))
	require.Equal(t, 2, committer.calls)
	require.Equal(t, checkout.StatusCompleted, g.Status())
}

func TestInvalidateBeforeCommitIsHarmless(t *testing.T) {
	t.Parallel()

	g := NewGate(&fakeCommitter{}, &fakeCartSource{}, nil, nil)
	g.Invalidate()
	require.Equal(t, checkout.StatusNotStarted, g.Status())
}

// Wires a real coordinator to the gate the way the session factory does and
// proves a cart mutation after commit invalidates it.
func TestCartMutationInvalidatesCommit(t *testing.T) {
	t.Parallel()

	coordinator := appcart.NewCoordinator(acceptAllRemote{}, nil, nil)
	committer := &fakeCommitter{}
	g := NewGate(committer, coordinator, nil, nil)
	coordinator.OnMutate(g.Invalidate)

	_, err := coordinator.AddLine(context.Background(), 10, 20, "tee", 2, decimal.NewFromInt(50))
	require.NoError(t, err)

	require.NoError(t, g.Commit(context.Background()))
	require.NoError(t, g.RequireCompleted())

	_, err = coordinator.AddLine(context.Background(), 11, 21, "cap", 1, decimal.NewFromInt(20))
	require.NoError(t, err)

	require.Equal(t, checkout.StatusInvalidated, g.Status())
	require.ErrorIs(t, g.RequireCompleted(), checkout.ErrNotCheckedOut)
}

type acceptAllRemote struct{}

func (acceptAllRemote) AddItem(context.Context, int64, int64, int) error { return nil }

func (acceptAllRemote) Fetch(context.Context) (domcart.Snapshot, error) {
	return domcart.Snapshot{}, nil
}
