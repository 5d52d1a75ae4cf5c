package session

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/papertrade/internal/domain"
)

// QuantityPlaces is the number of decimal places accepted for order quantities.
const QuantityPlaces = 4

// MinQuantity is the smallest order quantity, 0.0001.
var MinQuantity = decimal.New(1, -QuantityPlaces)

// ParseQuantity parses user input into an order quantity of at least MinQuantity
// with at most QuantityPlaces decimal places.
func ParseQuantity(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, errors.Wrap(domain.ErrInvalidOrder, "quantity is empty")
	}

	qty, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(domain.ErrInvalidOrder, "quantity %q is not a number", s)
	}
	if qty.LessThan(MinQuantity) {
		return decimal.Zero, errors.Wrapf(domain.ErrInvalidOrder, "quantity must be at least %s", MinQuantity.StringFixed(QuantityPlaces))
	}
	if !qty.Equal(qty.Truncate(QuantityPlaces)) {
		return decimal.Zero, errors.Wrapf(domain.ErrInvalidOrder, "quantity allows at most %d decimal places", QuantityPlaces)
	}

	return qty, nil
}
