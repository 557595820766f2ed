package models

import "github.com/shopspring/decimal"

// Settlement records a payment between group members that cleared one
// or more splits. Settlements are append-only audit rows: exactly one
// is written per successful allocation that settled a non-zero amount,
// covering the total rather than one row per split.
type Settlement struct {
	// ID is the unique identifier for the settlement (UUID format).
	ID string

	// GroupID is the group this settlement belongs to.
	GroupID string

	// PayerID is the debtor settling up.
	PayerID string

	// ReceiverID is the creditor being paid. Never equal to PayerID.
	ReceiverID string

	// Amount is the total settled across all consumed splits.
	Amount decimal.Decimal

	// Description is an optional note for the settlement.
	Description string

	// CreatedAt is the Unix timestamp when the settlement was recorded.
	CreatedAt int64
}
