package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	domcart "github.com/nileshop/checkout/internal/domain/cart"
)

type addCall struct {
	productID int64
	variantID int64
	quantity  int
}

type fakeRemoteCart struct {
	addCalls   []addCall
	failAdds   map[domcart.Key]error
	fetchSnap  domcart.Snapshot
	fetchErr   error
	fetchCalls int
}

func (f *fakeRemoteCart) AddItem(_ context.Context, productID, variantID int64, quantity int) error {
	f.addCalls = append(f.addCalls, addCall{productID, variantID, quantity})
	if err := f.failAdds[domcart.Key{ProductID: productID, VariantID: variantID}]; err != nil {
		return err
	}
	return nil
}

func (f *fakeRemoteCart) Fetch(context.Context) (domcart.Snapshot, error) {
	f.fetchCalls++
	if f.fetchErr != nil {
		return domcart.Snapshot{}, f.fetchErr
	}
	return f.fetchSnap, nil
}

func price(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestAddLineSyncsRemote(t *testing.T) {
	t.Parallel()

	remote := &fakeRemoteCart{}
	c := NewCoordinator(remote, nil, nil)

	res, err := c.AddLine(context.Background(), 10, 20, "tee", 2, price(50))
	require.NoError(t, err)
	require.True(t, res.RemoteSynced)
	require.NoError(t, res.RemoteErr)
	require.Equal(t, []addCall{{10, 20, 2}}, remote.addCalls)
	require.Len(t, c.Lines(), 1)
}

func TestAddLineRejectsDuplicateBeforeNetwork(t *testing.T) {
	t.Parallel()

	remote := &fakeRemoteCart{}
	c := NewCoordinator(remote, nil, nil)

	_, err := c.AddLine(context.Background(), 10, 20, "tee", 2, price(50))
	require.NoError(t, err)

	_, err = c.AddLine(context.Background(), 10, 20, "tee", 1, price(50))
	require.ErrorIs(t, err, domcart.ErrAlreadyInCart)
	require.Len(t, remote.addCalls, 1)
}

func TestAddLineKeepsLocalStateWhenRemoteFails(t *testing.T) {
	t.Parallel()

	remoteErr := errors.New("cart service down")
	remote := &fakeRemoteCart{failAdds: map[domcart.Key]error{
		{ProductID: 10, VariantID: 20}: remoteErr,
	}}
	c := NewCoordinator(remote, nil, nil)

	res, err := c.AddLine(context.Background(), 10, 20, "tee", 2, price(50))
	require.NoError(t, err)
	require.False(t, res.RemoteSynced)
	require.ErrorIs(t, res.RemoteErr, remoteErr)

	// The line is still in the local cart and replayable.
	require.Len(t, c.Lines(), 1)
	_, found := c.Snapshot().Find(10, 20)
	require.True(t, found)
}

func TestAddLineFiresMutationHook(t *testing.T) {
	t.Parallel()

	c := NewCoordinator(&fakeRemoteCart{}, nil, nil)
	fired := 0
	c.OnMutate(func() { fired++ })

	_, err := c.AddLine(context.Background(), 10, 20, "tee", 2, price(50))
	require.NoError(t, err)
	require.Equal(t, 1, fired)
}

func TestRemoveLineIsLocalOnly(t *testing.T) {
	t.Parallel()

	remote := &fakeRemoteCart{}
	c := NewCoordinator(remote, nil, nil)
	fired := 0
	c.OnMutate(func() { fired++ })

	_, err := c.AddLine(context.Background(), 10, 20, "tee", 2, price(50))
	require.NoError(t, err)
	_, err = c.AddLine(context.Background(), 11, 21, "cap", 1, price(20))
	require.NoError(t, err)

	require.NoError(t, c.RemoveLine(context.Background(), 10, 20))
	require.Len(t, c.Lines(), 1)
	require.Equal(t, int64(11), c.Lines()[0].ProductID)
	require.Equal(t, 3, fired)

	// Only the two adds ever reached the remote.
	require.Len(t, remote.addCalls, 2)

	require.ErrorIs(t, c.RemoveLine(context.Background(), 10, 20), domcart.ErrLineNotFound)
}

func TestRemoveLineReindexesRemainingLines(t *testing.T) {
	t.Parallel()

	c := NewCoordinator(&fakeRemoteCart{}, nil, nil)
	for i := int64(1); i <= 3; i++ {
		_, err := c.AddLine(context.Background(), i, i*10, "p", 1, price(5))
		require.NoError(t, err)
	}

	require.NoError(t, c.RemoveLine(context.Background(), 1, 10))
	require.NoError(t, c.RemoveLine(context.Background(), 3, 30))
	require.Len(t, c.Lines(), 1)
	require.Equal(t, int64(2), c.Lines()[0].ProductID)
}

func TestReplayToleratesPartialFailure(t *testing.T) {
	t.Parallel()

	remote := &fakeRemoteCart{failAdds: map[domcart.Key]error{
		{ProductID: 11, VariantID: 21}: errors.New("rejected"),
	}}
	c := NewCoordinator(remote, nil, nil)

	_, err := c.AddLine(context.Background(), 10, 20, "tee", 2, price(50))
	require.NoError(t, err)
	_, err = c.AddLine(context.Background(), 11, 21, "cap", 1, price(20))
	require.NoError(t, err)
	snap := c.Snapshot()
	remote.addCalls = nil

	replayed, err := c.Replay(context.Background(), snap)
	require.NoError(t, err)
	require.Equal(t, 1, replayed)
	require.Len(t, remote.addCalls, 2)
}

func TestReplayStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	remote := &fakeRemoteCart{}
	c := NewCoordinator(remote, nil, nil)
	_, err := c.AddLine(context.Background(), 10, 20, "tee", 2, price(50))
	require.NoError(t, err)
	snap := c.Snapshot()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	replayed, err := c.Replay(ctx, snap)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, replayed)
}

func TestRestoreReplaysOnlyMissingLines(t *testing.T) {
	t.Parallel()

	have, err := domcart.NewLine(10, 20, "tee", 2, price(50))
	require.NoError(t, err)

	remote := &fakeRemoteCart{fetchSnap: domcart.NewSnapshot([]domcart.Line{have})}
	c := NewCoordinator(remote, nil, nil)

	_, err = c.AddLine(context.Background(), 10, 20, "tee", 2, price(50))
	require.NoError(t, err)
	_, err = c.AddLine(context.Background(), 11, 21, "cap", 1, price(20))
	require.NoError(t, err)
	snap := c.Snapshot()
	remote.addCalls = nil

	replayed, err := c.Restore(context.Background(), snap)
	require.NoError(t, err)
	require.Equal(t, 1, replayed)
	require.Equal(t, []addCall{{11, 21, 1}}, remote.addCalls)
}

func TestRestoreFallsBackToFullReplayWhenFetchFails(t *testing.T) {
	t.Parallel()

	remote := &fakeRemoteCart{fetchErr: errors.New("cart unreachable")}
	c := NewCoordinator(remote, nil, nil)

	_, err := c.AddLine(context.Background(), 10, 20, "tee", 2, price(50))
	require.NoError(t, err)
	snap := c.Snapshot()
	remote.addCalls = nil

	replayed, err := c.Restore(context.Background(), snap)
	require.NoError(t, err)
	require.Equal(t, 1, replayed)
	require.Len(t, remote.addCalls, 1)
}

func TestRestoreNoopWhenRemoteAlreadyComplete(t *testing.T) {
	t.Parallel()

	have, err := domcart.NewLine(10, 20, "tee", 2, price(50))
	require.NoError(t, err)

	remote := &fakeRemoteCart{fetchSnap: domcart.NewSnapshot([]domcart.Line{have})}
	c := NewCoordinator(remote, nil, nil)

	replayed, err := c.Restore(context.Background(), domcart.NewSnapshot([]domcart.Line{have}))
	require.NoError(t, err)
	require.Equal(t, 0, replayed)
	require.Empty(t, remote.addCalls)
}
