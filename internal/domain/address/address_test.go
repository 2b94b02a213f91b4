package address

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := Address{
		ID:            1,
		Country:       "EG",
		City:          "Cairo",
		StreetAddress: "1 Tahrir Square",
		PostalCode:    "11511",
	}
	require.NoError(t, Validate(valid))
}

func TestValidateNamesEveryMissingField(t *testing.T) {
	t.Parallel()

	err := Validate(Address{ID: 1, City: "Cairo", PostalCode: "  "})
	require.Error(t, err)

	var missing *MissingFieldsError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, []string{"country", "streetAddress", "postalCode"}, missing.Fields)
	require.Contains(t, missing.Error(), "country, streetAddress, postalCode")
}
