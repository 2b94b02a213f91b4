package address

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNoneSelected = errors.New("address: no address selected")

// Address is a delivery address as returned by the address collaborator.
// This core never mutates addresses; it only selects and validates them.
type Address struct {
	ID            int64
	Country       string
	City          string
	StreetAddress string
	PostalCode    string
	Phone         string
	IsDefault     bool
}

// MissingFieldsError names every required field that is empty so the caller
// can show them to the user verbatim.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("address: missing required fields: %s", strings.Join(e.Fields, ", "))
}

// Validate checks the required-field set {country, city, streetAddress, postalCode}.
func Validate(a Address) error {
	var missing []string
	if strings.TrimSpace(a.Country) == "" {
		missing = append(missing, "country")
	}
	if strings.TrimSpace(a.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(a.StreetAddress) == "" {
		missing = append(missing, "streetAddress")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		missing = append(missing, "postalCode")
	}
	if len(missing) > 0 {
		return &MissingFieldsError{Fields: missing}
	}
	return nil
}
