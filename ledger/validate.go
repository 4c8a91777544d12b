package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Limits bounds what the ledger accepts as a money amount and how hard
// it fights for a folio before giving up.
type Limits struct {
	MinAmount    decimal.Decimal
	MaxAmount    decimal.Decimal
	FolioRetries int
}

// DefaultLimits returns the configured sane range used when the
// environment provides nothing: one centavo up to a million.
func DefaultLimits() Limits {
	return Limits{
		MinAmount:    decimal.New(1, -2),
		MaxAmount:    decimal.New(1_000_000, 0),
		FolioRetries: 3,
	}
}

// ValidateAmount rejects non-positive amounts, more than two decimal
// places, and amounts outside the configured range. Always called
// before any storage write is attempted.
func ValidateAmount(field string, amount decimal.Decimal, limits Limits) error {
	if !amount.IsPositive() {
		return &ValidationError{Field: field, Reason: "must be greater than zero"}
	}
	if !amount.Equal(amount.Round(2)) {
		return &ValidationError{Field: field, Reason: "at most two decimal places"}
	}
	if amount.LessThan(limits.MinAmount) || amount.GreaterThan(limits.MaxAmount) {
		return &ValidationError{
			Field:  field,
			Reason: "outside allowed range " + limits.MinAmount.String() + ".." + limits.MaxAmount.String(),
		}
	}
	return nil
}

// ValidateName rejects empty or whitespace-only names.
func ValidateName(field, name string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: field, Reason: "must not be empty"}
	}
	return nil
}
