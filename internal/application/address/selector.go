package address

import (
	"context"
	"fmt"

	domaddr "github.com/nileshop/checkout/internal/domain/address"
	"github.com/nileshop/checkout/internal/observability"
	"github.com/nileshop/checkout/internal/observability/logctx"
)

// Directory fetches the customer's addresses from the address collaborator.
type Directory interface {
	Addresses(ctx context.Context) ([]domaddr.Address, error)
}

// Selector holds the session's address list and the currently selected one.
// Addresses are fetched once per session and never mutated here.
type Selector struct {
	directory Directory
	log       observability.Logger

	loaded    bool
	addresses []domaddr.Address
	selected  *domaddr.Address
}

func NewSelector(directory Directory, logger observability.Logger) *Selector {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Selector{
		directory: directory,
		log:       logger.With(observability.F("component", "address_selector")),
	}
}

// Load fetches the address list on first use and pre-selects the default
// address when one exists.
func (s *Selector) Load(ctx context.Context) ([]domaddr.Address, error) {
	if s.loaded {
		return s.addresses, nil
	}

	addresses, err := s.directory.Addresses(ctx)
	if err != nil {
		return nil, fmt.Errorf("address: load: %w", err)
	}
	s.addresses = addresses
	s.loaded = true

	for i := range addresses {
		if addresses[i].IsDefault {
			s.selected = &s.addresses[i]
			break
		}
	}

	logctx.FromOr(ctx, s.log).Info("addresses_loaded",
		observability.F("count", len(addresses)),
		observability.F("has_default", s.selected != nil),
	)
	return s.addresses, nil
}

// Select picks an address by id from the loaded list.
func (s *Selector) Select(ctx context.Context, id int64) error {
	if _, err := s.Load(ctx); err != nil {
		return err
	}
	for i := range s.addresses {
		if s.addresses[i].ID == id {
			s.selected = &s.addresses[i]
			return nil
		}
	}
	return fmt.Errorf("address: id %d: %w", id, domaddr.ErrNoneSelected)
}

// SelectedOrFail returns the selected address only when one is chosen and it
// passes required-field validation; it guards every downstream step.
func (s *Selector) SelectedOrFail() (domaddr.Address, error) {
	if s.selected == nil {
		return domaddr.Address{}, domaddr.ErrNoneSelected
	}
	if err := domaddr.Validate(*s.selected); err != nil {
		return domaddr.Address{}, err
	}
	return *s.selected, nil
}
