package payment

import (
	"context"
	"errors"
	"math"
)

// ErrDeclined marks a structured decline reported by the processor, as
// opposed to a transport or configuration failure.
var ErrDeclined = errors.New("payment declined")

// LineItem is one row of a hosted checkout page. Amounts are in cents.
type LineItem struct {
	Name        string
	Description string
	Image       string
	UnitAmount  int64
	Quantity    int64
}

type Session struct {
	ID   string
	URL  string
	Paid bool
}

// Gateway abstracts the hosted-checkout API of the payment processor.
type Gateway interface {
	CreateSession(ctx context.Context, orderID, userID uint, items []LineItem, successURL, cancelURL string) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
}

// Cents converts a decimal price to the smallest currency unit.
func Cents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
