package address

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	domaddr "github.com/nileshop/checkout/internal/domain/address"
)

type fakeDirectory struct {
	addresses []domaddr.Address
	err       error
	calls     int
}

func (f *fakeDirectory) Addresses(context.Context) ([]domaddr.Address, error) {
	f.calls++
	return f.addresses, f.err
}

func twoAddresses() []domaddr.Address {
	return []domaddr.Address{
		{ID: 1, Country: "EG", City: "Cairo", StreetAddress: "1 Tahrir Square", PostalCode: "11511"},
		{ID: 2, Country: "EG", City: "Giza", StreetAddress: "5 Pyramids Rd", PostalCode: "12556", IsDefault: true},
	}
}

func TestLoadFetchesOnceAndPreselectsDefault(t *testing.T) {
	t.Parallel()

	dir := &fakeDirectory{addresses: twoAddresses()}
	s := NewSelector(dir, nil)

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	_, err = s.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, dir.calls)

	selected, err := s.SelectedOrFail()
	require.NoError(t, err)
	require.Equal(t, int64(2), selected.ID)
}

func TestSelectByID(t *testing.T) {
	t.Parallel()

	s := NewSelector(&fakeDirectory{addresses: twoAddresses()}, nil)
	require.NoError(t, s.Select(context.Background(), 1))

	selected, err := s.SelectedOrFail()
	require.NoError(t, err)
	require.Equal(t, int64(1), selected.ID)

	require.ErrorIs(t, s.Select(context.Background(), 99), domaddr.ErrNoneSelected)
}

func TestSelectedOrFailWithoutSelection(t *testing.T) {
	t.Parallel()

	// No default in the list, nothing selected yet.
	s := NewSelector(&fakeDirectory{addresses: []domaddr.Address{
		{ID: 1, Country: "EG", City: "Cairo", StreetAddress: "1 Tahrir Square", PostalCode: "11511"},
	}}, nil)
	_, err := s.Load(context.Background())
	require.NoError(t, err)

	_, err = s.SelectedOrFail()
	require.ErrorIs(t, err, domaddr.ErrNoneSelected)
}

func TestSelectedOrFailValidatesRequiredFields(t *testing.T) {
	t.Parallel()

	s := NewSelector(&fakeDirectory{addresses: []domaddr.Address{
		{ID: 1, Country: "EG", City: "Cairo", IsDefault: true},
	}}, nil)
	_, err := s.Load(context.Background())
	require.NoError(t, err)

	_, err = s.SelectedOrFail()
	var missing *domaddr.MissingFieldsError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, []string{"streetAddress", "postalCode"}, missing.Fields)
}

func TestLoadPropagatesDirectoryFailure(t *testing.T) {
	t.Parallel()

	dirErr := errors.New("address service down")
	s := NewSelector(&fakeDirectory{err: dirErr}, nil)

	_, err := s.Load(context.Background())
	require.ErrorIs(t, err, dirErr)

	// A failed load is retryable.
	require.ErrorIs(t, s.Select(context.Background(), 1), dirErr)
}
