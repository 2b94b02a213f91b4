package checkout

import (
	"time"

	"github.com/nileshop/checkout/internal/domain/outbox"
)

const (
	EventCartLineAdded     = "cart.line_added"
	EventCartRestored      = "cart.restored"
	EventCheckoutCommitted = "checkout.committed"
	EventOrderCreated      = "order.created"
	EventPaymentSubmitted  = "payment.submitted"
)

type CartLineAddedEvent struct {
	ProductID    int64
	VariantID    int64
	Quantity     int
	RemoteSynced bool
	At           time.Time
}

func (CartLineAddedEvent) EventName() string { return EventCartLineAdded }

type CartRestoredEvent struct {
	LinesReplayed int
	LinesTotal    int
	At            time.Time
}

func (CartRestoredEvent) EventName() string { return EventCartRestored }

type CheckoutCommittedEvent struct {
	Lines int
	At    time.Time
}

func (CheckoutCommittedEvent) EventName() string { return EventCheckoutCommitted }

type OrderCreatedEvent struct {
	OrderID     string
	OrderNumber string
	At          time.Time
}

func (OrderCreatedEvent) EventName() string { return EventOrderCreated }

type PaymentSubmittedEvent struct {
	OrderID          string
	RedirectRequired bool
	At               time.Time
}

func (PaymentSubmittedEvent) EventName() string { return EventPaymentSubmitted }

var (
	_ outbox.Event = CartLineAddedEvent{}
	_ outbox.Event = CartRestoredEvent{}
	_ outbox.Event = CheckoutCommittedEvent{}
	_ outbox.Event = OrderCreatedEvent{}
	_ outbox.Event = PaymentSubmittedEvent{}
)
