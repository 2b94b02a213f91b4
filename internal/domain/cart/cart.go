package cart

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity = errors.New("cart: quantity must be greater than zero")
	ErrAlreadyInCart   = errors.New("cart: variant already in cart")
	ErrLineNotFound    = errors.New("cart: line not found")
	ErrNegativePrice   = errors.New("cart: unit price must be zero or greater")
)

// Line is one cart entry, unique by (ProductID, VariantID).
type Line struct {
	ProductID   int64
	ProductName string
	VariantID   int64
	Quantity    int
	UnitPrice   decimal.Decimal
	AddedAt     time.Time
}

func NewLine(productID, variantID int64, productName string, quantity int, unitPrice decimal.Decimal) (Line, error) {
	if quantity <= 0 {
		return Line{}, ErrInvalidQuantity
	}
	if unitPrice.IsNegative() {
		return Line{}, ErrNegativePrice
	}
	return Line{
		ProductID:   productID,
		ProductName: productName,
		VariantID:   variantID,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		AddedAt:     time.Now().UTC(),
	}, nil
}

// Key identifies a line inside a cart.
type Key struct {
	ProductID int64
	VariantID int64
}

func (l Line) Key() Key {
	return Key{ProductID: l.ProductID, VariantID: l.VariantID}
}

// Subtotal is quantity times unit price for this line.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Snapshot is an ordered, replayable copy of the cart contents. It is owned
// by exactly one in-flight checkout attempt and is safe to hold across the
// remote cart being cleared.
type Snapshot struct {
	Lines   []Line
	TakenAt time.Time
}

func NewSnapshot(lines []Line) Snapshot {
	copied := make([]Line, len(lines))
	copy(copied, lines)
	return Snapshot{Lines: copied, TakenAt: time.Now().UTC()}
}

func (s Snapshot) Empty() bool { return len(s.Lines) == 0 }

func (s Snapshot) Len() int { return len(s.Lines) }

// Subtotal sums the line subtotals across the snapshot.
func (s Snapshot) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Find returns the line for the given product/variant pair, if present.
func (s Snapshot) Find(productID, variantID int64) (Line, bool) {
	for _, l := range s.Lines {
		if l.ProductID == productID && l.VariantID == variantID {
			return l, true
		}
	}
	return Line{}, false
}
