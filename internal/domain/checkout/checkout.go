package checkout

import (
	"errors"
)

var (
	ErrInvalidStateTransition = errors.New("checkout: invalid state transition")
	ErrNotCheckedOut          = errors.New("checkout: cart has not been committed")
	ErrAttemptInFlight        = errors.New("checkout: another attempt is already in flight")
	// ErrOrderIDMissing means order creation reported success on the wire but
	// no recognizable id could be extracted from the response.
	ErrOrderIDMissing = errors.New("checkout: order created without a recognizable id")
)

type Status string

const (
	StatusNotStarted  Status = "not_started"
	StatusInProgress  Status = "in_progress"
	StatusCompleted   Status = "completed"
	StatusInvalidated Status = "invalidated"
)

// OrderHandle identifies a created order. It exists only after a successful
// order-creation response yielded a recognizable id.
type OrderHandle struct {
	OrderID     string
	OrderNumber string
}
