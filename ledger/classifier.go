/*
classifier.go - Payment state derivation

PURPOSE:
  A pure, total function from (total non-voided paid, expected amount)
  to one of four states. There is no stored status column: this
  function is the single source of truth, so the label can never drift
  from the payment facts.

TRANSITIONS:
  Payments only move state forward (pending → partial → completed →
  overpaid). A decrease can only happen through the void path, which is
  a separate, separately-audited operation. Transition legality is used
  to flag anomalies, never to refuse money.
*/
package ledger

import "github.com/shopspring/decimal"

// PaymentStatus is the derived state of an enrollment's debt.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusPartial   PaymentStatus = "partial"
	StatusCompleted PaymentStatus = "completed"
	StatusOverpaid  PaymentStatus = "overpaid"
)

// Classify maps a paid total and expected amount to a payment state.
// Pure function: no side effects, total over all inputs.
//
//	pending   iff paid == 0
//	partial   iff 0 < paid < expected
//	completed iff paid == expected
//	overpaid  iff paid > expected
func Classify(paid, expected decimal.Decimal) PaymentStatus {
	switch {
	case paid.LessThanOrEqual(decimal.Zero):
		return StatusPending
	case paid.LessThan(expected):
		return StatusPartial
	case paid.Equal(expected):
		return StatusCompleted
	default:
		return StatusOverpaid
	}
}

// rank orders states for monotonicity checks. Higher means more paid.
func rank(s PaymentStatus) int {
	switch s {
	case StatusPending:
		return 0
	case StatusPartial:
		return 1
	case StatusCompleted:
		return 2
	case StatusOverpaid:
		return 3
	}
	return -1
}

// CanTransition reports whether moving from one state to another is
// legal through payment registration alone. Completed → completed is
// allowed because equal totals can recur after a void/repay cycle.
//
// A decreasing transition is only reachable through VoidPayment; a
// caller observing one outside that path has found an anomaly.
func CanTransition(from, to PaymentStatus) bool {
	rf, rt := rank(from), rank(to)
	if rf < 0 || rt < 0 {
		return false
	}
	if from == StatusPending {
		return rt > rf // pending → pending would mean a zero payment, which validation rejects
	}
	return rt >= rf
}
