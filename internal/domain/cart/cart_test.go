package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestNewLineValidation(t *testing.T) {
	t.Parallel()

	_, err := NewLine(1, 2, "tee", 0, decimal.NewFromInt(10))
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = NewLine(1, 2, "tee", -1, decimal.NewFromInt(10))
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = NewLine(1, 2, "tee", 1, decimal.NewFromInt(-1))
	require.ErrorIs(t, err, ErrNegativePrice)

	line, err := NewLine(1, 2, "tee", 3, decimal.NewFromInt(10))
	require.NoError(t, err)
	require.Equal(t, Key{ProductID: 1, VariantID: 2}, line.Key())
	require.False(t, line.AddedAt.IsZero())
}

func TestSnapshotSubtotal(t *testing.T) {
	t.Parallel()

	a, err := NewLine(10, 20, "tee", 2, decimal.NewFromInt(50))
	require.NoError(t, err)
	b, err := NewLine(11, 21, "cap", 1, decimal.RequireFromString("19.99"))
	require.NoError(t, err)

	snap := NewSnapshot([]Line{a, b})
	require.Equal(t, 2, snap.Len())
	require.False(t, snap.Empty())
	require.True(t, snap.Subtotal().Equal(decimal.RequireFromString("119.99")))

	got, ok := snap.Find(10, 20)
	require.True(t, ok)
	require.Equal(t, 2, got.Quantity)

	_, ok = snap.Find(10, 99)
	require.False(t, ok)
}

func TestSnapshotCopiesLines(t *testing.T) {
	t.Parallel()

	a, err := NewLine(10, 20, "tee", 2, decimal.NewFromInt(50))
	require.NoError(t, err)

	lines := []Line{a}
	snap := NewSnapshot(lines)
	lines[0].Quantity = 99

	require.Equal(t, 2, snap.Lines[0].Quantity)
}
