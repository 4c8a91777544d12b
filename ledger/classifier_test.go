package ledger_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/RodrigoEnd/sistema-digital-comunidad-sub000/ledger"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

func TestClassify_Boundaries(t *testing.T) {
	expected := dec("500.00")

	tests := []struct {
		name string
		paid string
		want ledger.PaymentStatus
	}{
		{"nothing paid", "0", ledger.StatusPending},
		{"one cent", "0.01", ledger.StatusPartial},
		{"one cent short", "499.99", ledger.StatusPartial},
		{"exactly the debt", "500.00", ledger.StatusCompleted},
		{"one cent over", "500.01", ledger.StatusOverpaid},
		{"double", "1000", ledger.StatusOverpaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ledger.Classify(dec(tt.paid), expected))
		})
	}
}

func TestClassify_ScaleInsensitive(t *testing.T) {
	// "500", "500.0" and "500.00" are the same amount. A paid total that
	// equals the expected amount must classify as completed regardless of
	// how either value was written.
	assert.Equal(t, ledger.StatusCompleted, ledger.Classify(dec("500"), dec("500.00")))
	assert.Equal(t, ledger.StatusCompleted, ledger.Classify(dec("500.00"), dec("500")))
}

func TestClassify_TotalOverDegenerateInputs(t *testing.T) {
	// The function is total: it answers even for inputs validation would
	// have rejected, because the validator reads raw stored rows.
	assert.Equal(t, ledger.StatusPending, ledger.Classify(dec("-10"), dec("500")))
	// Nothing paid wins over paid == expected.
	assert.Equal(t, ledger.StatusPending, ledger.Classify(dec("0"), dec("0")))
}

func TestClassify_SumNeverIndividualPayments(t *testing.T) {
	// GIVEN: Expected 500, paid in three uneven installments
	// WHEN: Classifying the running total after each
	// THEN: State only moves forward

	expected := dec("500")
	installments := []string{"100", "150.50", "249.50"}

	total := decimal.Zero
	prev := ledger.Classify(total, expected)
	for _, inst := range installments {
		total = total.Add(dec(inst))
		next := ledger.Classify(total, expected)
		assert.True(t, ledger.CanTransition(prev, next),
			"payment must not move state backwards: %s -> %s", prev, next)
		prev = next
	}
	assert.Equal(t, ledger.StatusCompleted, prev)
}

// =============================================================================
// TRANSITIONS
// =============================================================================

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to ledger.PaymentStatus
		want     bool
	}{
		{ledger.StatusPending, ledger.StatusPartial, true},
		{ledger.StatusPending, ledger.StatusCompleted, true},
		{ledger.StatusPending, ledger.StatusOverpaid, true},
		{ledger.StatusPartial, ledger.StatusCompleted, true},
		{ledger.StatusPartial, ledger.StatusPartial, true},
		{ledger.StatusCompleted, ledger.StatusOverpaid, true},

		// Completed → completed recurs after a void/repay cycle.
		{ledger.StatusCompleted, ledger.StatusCompleted, true},

		// A registration can never lower the total.
		{ledger.StatusPartial, ledger.StatusPending, false},
		{ledger.StatusCompleted, ledger.StatusPartial, false},
		{ledger.StatusOverpaid, ledger.StatusCompleted, false},

		// Zero payments are rejected by validation, so pending cannot
		// stay pending through a registration.
		{ledger.StatusPending, ledger.StatusPending, false},

		// Unknown labels are never legal.
		{ledger.PaymentStatus("corrupt"), ledger.StatusPartial, false},
		{ledger.StatusPartial, ledger.PaymentStatus(""), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ledger.CanTransition(tt.from, tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}
